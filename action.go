package forge

import (
	"github.com/pkg/errors"

	"github.com/denismitr/forge/internal/database"
)

type action struct {
	steps     int
	limited   bool
	dropViews bool
}

func newAction(cfs []ActionConfigurator) *action {
	act := new(action)
	for _, f := range cfs {
		f(act)
	}

	return act
}

// WithSteps limits migrate to the n earliest pending migrations and
// rollback to the n most recent applied ones. Zero runs nothing.
func WithSteps(steps int) ActionConfigurator {
	return func(a *action) {
		a.steps = steps
		a.limited = true
	}
}

// WithDropViews makes Fresh drop views before tables.
func WithDropViews() ActionConfigurator {
	return func(a *action) {
		a.dropViews = true
	}
}

// CreateConfigurators maps command line flags to configurators. A nil
// steps means no limit.
func CreateConfigurators(steps *int, dropViews bool) []ActionConfigurator {
	var configurators []ActionConfigurator
	if steps != nil {
		configurators = append(configurators, WithSteps(*steps))
	}

	if dropViews {
		configurators = append(configurators, WithDropViews())
	}

	return configurators
}

func (a *action) plan() (database.Plan, error) {
	if !a.limited {
		return database.Plan{}, nil
	}

	if a.steps < 0 {
		return database.Plan{}, errors.Wrapf(ErrNegativeSteps, "got %d", a.steps)
	}

	return database.Steps(a.steps), nil
}
