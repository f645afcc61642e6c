package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/denismitr/forge/internal/logger"
	"github.com/denismitr/forge/migration"
)

const DefaultMigrationsFolder = "./database/migrations"

const (
	upFileExtension   = ".up.sql"
	downFileExtension = ".down.sql"
	goFileExtension   = ".go"
	goTestFileSuffix  = "_test.go"
)

type fileKind int

const (
	upFile fileKind = iota
	downFile
	goFile
)

type entry struct {
	up, down, code string
}

type LocalFileSource struct {
	fs       afero.Fs
	folder   string
	lg       logger.Logger
	registry *migration.Registry
	clock    migration.ClockFunc
}

var _ Source = (*LocalFileSource)(nil)

type LocalOption func(lfs *LocalFileSource)

// WithRegistry makes .go files in the folder resolve to the units
// registered under their file name.
func WithRegistry(r *migration.Registry) LocalOption {
	return func(lfs *LocalFileSource) {
		lfs.registry = r
	}
}

func WithFs(fs afero.Fs) LocalOption {
	return func(lfs *LocalFileSource) {
		lfs.fs = fs
	}
}

func WithClock(cf migration.ClockFunc) LocalOption {
	return func(lfs *LocalFileSource) {
		lfs.clock = cf
	}
}

func NewLocalFSSource(folder string, lg logger.Logger, opts ...LocalOption) *LocalFileSource {
	if folder == "" {
		folder = DefaultMigrationsFolder
	}

	if lg == nil {
		lg = logger.NullLogger{}
	}

	lfs := &LocalFileSource{
		fs:     afero.NewOsFs(),
		folder: folder,
		lg:     lg,
		clock:  time.Now,
	}

	for _, o := range opts {
		o(lfs)
	}

	return lfs
}

func (lfs *LocalFileSource) Folder() string {
	return lfs.folder
}

func (lfs *LocalFileSource) IsValid() bool {
	ok, err := afero.IsDir(lfs.fs, lfs.folder)
	return err == nil && ok
}

func (lfs *LocalFileSource) AlreadyExists(name string) bool {
	for _, ext := range []string{upFileExtension, goFileExtension} {
		if ok, err := afero.Exists(lfs.fs, filepath.Join(lfs.folder, name+ext)); err == nil && ok {
			return true
		}
	}

	return false
}

// Create writes the up and down files of a new migration named after
// description, pre-filled when the description names a table.
func (lfs *LocalFileSource) Create(description string) (*migration.Migration, error) {
	name := migration.NewName(lfs.clock, description)
	if lfs.AlreadyExists(name) {
		return nil, errors.Wrapf(ErrAlreadyExists, "[%s]", name)
	}

	if err := lfs.fs.MkdirAll(lfs.folder, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create folder [%s]", lfs.folder)
	}

	up, down := migration.Stubs(description)

	files := []struct {
		path, contents string
	}{
		{path: filepath.Join(lfs.folder, name+upFileExtension), contents: up},
		{path: filepath.Join(lfs.folder, name+downFileExtension), contents: down},
	}

	for _, f := range files {
		if err := afero.WriteFile(lfs.fs, f.path, []byte(f.contents), 0644); err != nil {
			return nil, errors.Wrapf(err, "could not create file [%s]", f.path)
		}

		lfs.lg.Debugf("created %s", f.path)
	}

	return migration.New(name, migration.Script{Up: []string{up}, Down: []string{down}})
}

// Select reads every migration of the folder. Entries not following the
// naming convention are skipped.
func (lfs *LocalFileSource) Select(ctx context.Context) (migration.Migrations, error) {
	entries, err := lfs.scan()
	if err != nil {
		return nil, err
	}

	type result struct {
		m   *migration.Migration
		err error
	}

	resultsCh := make(chan result, len(entries))
	var wg sync.WaitGroup

	for name, e := range entries {
		wg.Add(1)
		go func(name string, e entry) {
			defer wg.Done()

			m, err := lfs.readOne(name, e)
			if err != nil {
				err = errors.Wrapf(err, "with name %s", name)
			}

			resultsCh <- result{m: m, err: err}
		}(name, e)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var migrations migration.Migrations

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r, ok := <-resultsCh:
			if !ok {
				sort.Sort(migrations)
				return migrations, nil
			}

			if r.err != nil {
				lfs.lg.Error(r.err)
				return nil, r.err
			}

			migrations = append(migrations, r.m)
		}
	}
}

func (lfs *LocalFileSource) scan() (map[string]entry, error) {
	files, err := afero.ReadDir(lfs.fs, lfs.folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "could not read migrations from folder %s", lfs.folder)
	}

	entries := make(map[string]entry)

	for _, f := range files {
		if f.IsDir() {
			continue
		}

		name, kind, err := lfs.parseFileName(f.Name())
		if err != nil {
			lfs.lg.Debugf("skipping %s: %v", f.Name(), err)
			continue
		}

		e := entries[name]
		path := filepath.Join(lfs.folder, f.Name())

		switch kind {
		case upFile:
			e.up = path
		case downFile:
			e.down = path
		case goFile:
			e.code = path
		}

		if e.code != "" && (e.up != "" || e.down != "") {
			return nil, errors.Wrapf(ErrTooManyFilesForKey, "%s has both sql and go files", name)
		}

		entries[name] = e
	}

	return entries, nil
}

func (lfs *LocalFileSource) parseFileName(file string) (string, fileKind, error) {
	var name string
	var kind fileKind

	switch {
	case strings.HasSuffix(file, upFileExtension):
		name, kind = strings.TrimSuffix(file, upFileExtension), upFile
	case strings.HasSuffix(file, downFileExtension):
		name, kind = strings.TrimSuffix(file, downFileExtension), downFile
	case strings.HasSuffix(file, goTestFileSuffix):
		return "", 0, ErrNotAMigrationFile
	case strings.HasSuffix(file, goFileExtension) && lfs.registry != nil:
		name, kind = strings.TrimSuffix(file, goFileExtension), goFile
	default:
		return "", 0, ErrNotAMigrationFile
	}

	if !migration.IsValidName(name) {
		return "", 0, errors.Wrapf(migration.ErrInvalidName, "[%s]", name)
	}

	return name, kind, nil
}

func (lfs *LocalFileSource) readOne(name string, e entry) (*migration.Migration, error) {
	if e.code != "" {
		u, ok := lfs.registry.Lookup(name)
		if !ok {
			return nil, errors.Wrapf(ErrUnregisteredUnit, "%s", e.code)
		}

		return migration.New(name, u)
	}

	if e.up == "" {
		return nil, ErrMissingUpScript
	}

	up, err := afero.ReadFile(lfs.fs, e.up)
	if err != nil {
		return nil, err
	}

	var down []byte
	if e.down != "" {
		if down, err = afero.ReadFile(lfs.fs, e.down); err != nil {
			return nil, err
		}
	}

	return migration.New(name, migration.Script{
		Up:   []string{string(up)},
		Down: []string{string(down)},
	})
}
