package logger

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	lines []string
}

func (r *recorder) Output(_ int, s string) error {
	r.lines = append(r.lines, s)
	return nil
}

func TestBWLogger(t *testing.T) {
	t.Run("info, success and error are always printed", func(t *testing.T) {
		r := &recorder{}
		lg := NewBWLogger(r, false, false)

		lg.Infof("Running: %s", "2024_01_01_000000_create_users_table")
		lg.Successf("Migrated: %s", "2024_01_01_000000_create_users_table")
		lg.Error(errors.New("boom"))

		assert.Equal(t, []string{
			"Forge: Running: 2024_01_01_000000_create_users_table",
			"Forge: Migrated: 2024_01_01_000000_create_users_table",
			"Forge error: boom",
		}, r.lines)
	})

	t.Run("debug and sql are printed only when enabled", func(t *testing.T) {
		r := &recorder{}
		lg := NewBWLogger(r, false, false)

		lg.Debugf("resuming open batch %d", 2)
		lg.SQL("select 1")

		assert.Empty(t, r.lines)

		lg = NewBWLogger(r, true, true)
		lg.Debugf("resuming open batch %d", 2)
		lg.SQL(`delete from "migrations" where "migration" = ?`, "a")

		assert.Equal(t, []string{
			"Forge debug: resuming open batch 2",
			"Forge running sql: delete from \"migrations\" where \"migration\" = ?\nquery parameters: {\"a\"}",
		}, r.lines)
	})
}

func TestColoredLogger(t *testing.T) {
	r := &recorder{}
	lg := NewColorLogger(r, true, false)

	lg.Successf("Rolled back: %s", "x")
	lg.SQL("select 1")
	lg.Debugf("hidden")

	if assert.Len(t, r.lines, 2) {
		assert.Contains(t, r.lines[0], "Forge: Rolled back: x")
		assert.Contains(t, r.lines[1], "Forge running sql: select 1")
	}
}
