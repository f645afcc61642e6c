package forge

import (
	"github.com/spf13/afero"

	"github.com/denismitr/forge/internal/logger"
	"github.com/denismitr/forge/internal/source"
	"github.com/denismitr/forge/migration"
)

type (
	sourceConfig struct {
		registry *migration.Registry
		fs       afero.Fs
		clock    migration.ClockFunc
	}

	SourceConfigurator func(sc *sourceConfig)
)

// UseLocalFolderSource reads <name>.up.sql and <name>.down.sql pairs from
// folder, and .go files when a registry is given.
func UseLocalFolderSource(folder string, configurators ...SourceConfigurator) OptionFunc {
	var sc sourceConfig
	for _, c := range configurators {
		c(&sc)
	}

	return func(m *Migrator) error {
		m.sourceFn = func(lg logger.Logger) source.Selector {
			var opts []source.LocalOption
			if sc.registry != nil {
				opts = append(opts, source.WithRegistry(sc.registry))
			}

			if sc.fs != nil {
				opts = append(opts, source.WithFs(sc.fs))
			}

			if sc.clock != nil {
				opts = append(opts, source.WithClock(sc.clock))
			}

			return source.NewLocalFSSource(folder, lg, opts...)
		}

		return nil
	}
}

// UseInMemorySource serves the units registered in r.
func UseInMemorySource(r *migration.Registry) OptionFunc {
	return func(m *Migrator) error {
		m.sourceFn = func(logger.Logger) source.Selector {
			return source.NewInMemorySource(r)
		}

		return nil
	}
}

func WithRegistry(r *migration.Registry) SourceConfigurator {
	return func(sc *sourceConfig) {
		sc.registry = r
	}
}

func WithFs(fs afero.Fs) SourceConfigurator {
	return func(sc *sourceConfig) {
		sc.fs = fs
	}
}

func WithClock(cf migration.ClockFunc) SourceConfigurator {
	return func(sc *sourceConfig) {
		sc.clock = cf
	}
}
