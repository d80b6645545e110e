package dist

import (
	"context"

	"tickerhub/internal/model"
)

// Store is the slice of the shared state store the distribution server
// reads and writes. Satisfied by redis.Store; tests use an in-memory fake.
type Store interface {
	GetBars(ctx context.Context, tf, symbol string) ([]model.Bar, error)
	GetPosition(ctx context.Context, symbol string) (*model.Position, error)
	SetPosition(ctx context.Context, pos model.Position) error
	DeletePosition(ctx context.Context, symbol string) error
	GetSettings(ctx context.Context, symbol string) (model.Settings, error)
	MergeSettings(ctx context.Context, symbol string, patch model.Settings) (model.Settings, error)
	GetPrevDay(ctx context.Context, symbol string) (*model.PrevDay, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}
