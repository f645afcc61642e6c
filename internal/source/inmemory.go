package source

import (
	"context"

	"github.com/denismitr/forge/migration"
)

// InMemorySource serves the units compiled into the binary.
type InMemorySource struct {
	registry *migration.Registry
}

var _ Selector = (*InMemorySource)(nil)

func NewInMemorySource(registry *migration.Registry) *InMemorySource {
	return &InMemorySource{registry: registry}
}

func (c *InMemorySource) Select(ctx context.Context) (migration.Migrations, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.registry == nil {
		return nil, nil
	}

	return c.registry.Migrations()
}
