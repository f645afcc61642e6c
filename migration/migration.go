package migration

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/denismitr/forge/schema"
)

var ErrInvalidName = errors.New("invalid migration name")

// NameLayout is the timestamp layout of generated migration names.
const NameLayout = "2006_01_02_150405"

var nameRegexp = regexp.MustCompile(`^(\d{14}|\d{4}_\d{2}_\d{2}_\d{6})_(\w+)$`)

type (
	ClockFunc func() time.Time

	// Unit is a named migration step. Apply and Revert are expected to be
	// inverse of each other.
	Unit interface {
		Apply(ctx context.Context, s *schema.Builder) error
		Revert(ctx context.Context, s *schema.Builder) error
	}

	// Func is a migration step written in Go.
	Func func(ctx context.Context, s *schema.Builder) error

	// Funcs is a Unit made of two Go functions. A nil function is a no-op.
	Funcs struct {
		Up   Func
		Down Func
	}

	// Script is a Unit made of SQL statements.
	Script struct {
		Up   []string
		Down []string
	}

	Migration struct {
		Name        string
		Version     string
		Description string
		Unit        Unit
	}
)

func (f Funcs) Apply(ctx context.Context, s *schema.Builder) error {
	if f.Up == nil {
		return nil
	}

	return f.Up(ctx, s)
}

func (f Funcs) Revert(ctx context.Context, s *schema.Builder) error {
	if f.Down == nil {
		return nil
	}

	return f.Down(ctx, s)
}

func (sc Script) Apply(ctx context.Context, s *schema.Builder) error {
	return execScripts(ctx, s, sc.Up)
}

func (sc Script) Revert(ctx context.Context, s *schema.Builder) error {
	return execScripts(ctx, s, sc.Down)
}

func execScripts(ctx context.Context, s *schema.Builder, scripts []string) error {
	q := JoinScripts(scripts)
	if q == "" {
		return nil
	}

	return s.Connection().Statement(ctx, q)
}

// JoinScripts joins statements into one script, terminating every
// statement with a semicolon. Statements made only of blank lines and
// line comments are skipped.
func JoinScripts(scripts []string) string {
	var buf bytes.Buffer

	for _, script := range scripts {
		script = strings.TrimSpace(script)
		if isBlank(script) {
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString("\n")
		}

		buf.WriteString(script)

		if !strings.HasSuffix(script, ";") {
			buf.WriteString(";")
		}
	}

	return buf.String()
}

func isBlank(script string) bool {
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}

	return true
}

// New creates a migration after validating its name.
func New(name string, u Unit) (*Migration, error) {
	version, description, err := ParseName(name)
	if err != nil {
		return nil, err
	}

	return &Migration{Name: name, Version: version, Description: description, Unit: u}, nil
}

// ParseName splits a migration name into its timestamp and a human
// readable description. Names are either 20240101000000_create_users or
// 2024_01_01_000000_create_users.
func ParseName(name string) (string, string, error) {
	m := nameRegexp.FindStringSubmatch(name)
	if m == nil {
		return "", "", errors.Wrapf(ErrInvalidName, "[%s]", name)
	}

	description := strings.ReplaceAll(m[2], "_", " ")
	description = strings.ToUpper(description[:1]) + description[1:]

	return m[1], description, nil
}

// IsValidName reports whether name follows the naming convention.
func IsValidName(name string) bool {
	return nameRegexp.MatchString(name)
}

// NewName prefixes the snake cased description with the current time.
func NewName(cf ClockFunc, description string) string {
	var result bytes.Buffer
	result.WriteString(cf().Format(NameLayout))
	result.WriteString("_")
	result.WriteString(Snake(description))
	return result.String()
}

// Snake lower cases s and replaces spaces and dashes with underscores.
func Snake(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

type Migrations []*Migration

func (m Migrations) Names() []string {
	result := make([]string, 0, len(m))
	for i := range m {
		result = append(result, m[i].Name)
	}
	return result
}

// Find looks a migration up by name.
func (m Migrations) Find(name string) (*Migration, bool) {
	for i := range m {
		if m[i].Name == name {
			return m[i], true
		}
	}

	return nil, false
}

func (m Migrations) Len() int {
	return len(m)
}

func (m Migrations) Less(i, j int) bool {
	return m[i].Name < m[j].Name
}

func (m Migrations) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}
