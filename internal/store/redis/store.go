// Package redis implements the shared state store: the key-value layer
// plus publish/subscribe that decouples the feed engine from every
// consumer. It is the only state that survives a process restart.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"tickerhub/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ErrNotFound is returned when a requested key holds no document.
var ErrNotFound = errors.New("not found")

// Config configures the store connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Store wraps the Redis client with the bar/position/settings key
// namespace. Writes are plain SET of full documents; bar writes also
// PUBLISH an incremental event on the parallel channel.
type Store struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for pub/sub relays and
// health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[store] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// BarsKey builds the store key for a symbol+timeframe bar list.
func BarsKey(tf, symbol string) string { return "bars:" + tf + ":" + symbol }

// GetBars reads the full bar list for a symbol+timeframe. Returns an
// empty slice when the key does not exist.
func (s *Store) GetBars(ctx context.Context, tf, symbol string) ([]model.Bar, error) {
	data, err := s.client.Get(ctx, BarsKey(tf, symbol)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", BarsKey(tf, symbol), err)
	}

	var bars []model.Bar
	if err := json.Unmarshal([]byte(data), &bars); err != nil {
		return nil, fmt.Errorf("unmarshal bars %s: %w", BarsKey(tf, symbol), err)
	}
	return bars, nil
}

// AppendBar merges one finalized bar into the stored list (last write
// wins per timestamp, ascending sort, truncated to MaxBars), then writes
// the list and publishes the bar-close event in one pipeline round trip.
func (s *Store) AppendBar(ctx context.Context, bar model.Bar) error {
	bars, err := s.GetBars(ctx, bar.TF, bar.Symbol)
	if err != nil {
		return err
	}

	bars = DedupSort(append(bars, bar))
	bars = Truncate(bars, MaxBars)

	listData, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, bar.Key(), listData, 0)
	pipe.Publish(ctx, bar.Channel(), bar.JSON())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline %s: %w", bar.Key(), err)
	}
	return nil
}

// ReplaceBars overwrites the stored list wholesale. Used by the warm-up
// history flush; no per-bar events are published.
func (s *Store) ReplaceBars(ctx context.Context, tf, symbol string, bars []model.Bar) error {
	bars = Truncate(DedupSort(bars), MaxBars)
	data, err := json.Marshal(bars)
	if err != nil {
		return fmt.Errorf("marshal bars: %w", err)
	}
	if err := s.client.Set(ctx, BarsKey(tf, symbol), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", BarsKey(tf, symbol), err)
	}
	return nil
}

// PublishTick publishes an intrabar update. Pub/sub only, nothing stored.
func (s *Store) PublishTick(ctx context.Context, bar model.Bar) error {
	return s.client.Publish(ctx, bar.TickChannel(), bar.JSON()).Err()
}

// GetPosition reads the position document for a symbol.
// Returns ErrNotFound when none exists.
func (s *Store) GetPosition(ctx context.Context, symbol string) (*model.Position, error) {
	data, err := s.client.Get(ctx, model.PositionKey(symbol)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get position %s: %w", symbol, err)
	}

	var pos model.Position
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, fmt.Errorf("unmarshal position %s: %w", symbol, err)
	}
	return &pos, nil
}

// SetPosition writes a position document and publishes the change.
func (s *Store) SetPosition(ctx context.Context, pos model.Position) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, model.PositionKey(pos.Symbol), data, 0)
	pipe.Publish(ctx, model.PositionChannel(pos.Symbol), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set position %s: %w", pos.Symbol, err)
	}
	return nil
}

// DeletePosition clears a symbol's position record and publishes a
// terminal closed marker so consumers stop tracking it.
func (s *Store) DeletePosition(ctx context.Context, symbol string) error {
	closed, _ := json.Marshal(model.Position{Symbol: symbol, Closed: true})

	pipe := s.client.Pipeline()
	pipe.Del(ctx, model.PositionKey(symbol))
	pipe.Publish(ctx, model.PositionChannel(symbol), closed)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis del position %s: %w", symbol, err)
	}
	return nil
}

// GetSettings reads a symbol's settings mapping. Returns an empty
// mapping when none exists.
func (s *Store) GetSettings(ctx context.Context, symbol string) (model.Settings, error) {
	data, err := s.client.Get(ctx, model.SettingsKey(symbol)).Result()
	if err != nil {
		if err == goredis.Nil {
			return model.Settings{}, nil
		}
		return nil, fmt.Errorf("redis get settings %s: %w", symbol, err)
	}

	var st model.Settings
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal settings %s: %w", symbol, err)
	}
	return st, nil
}

// MergeSettings applies a partial mapping over the stored settings,
// last write wins, and returns the merged result.
func (s *Store) MergeSettings(ctx context.Context, symbol string, patch model.Settings) (model.Settings, error) {
	cur, err := s.GetSettings(ctx, symbol)
	if err != nil {
		return nil, err
	}
	for k, v := range patch {
		cur[k] = v
	}

	data, err := json.Marshal(cur)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	if err := s.client.Set(ctx, model.SettingsKey(symbol), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("redis set settings %s: %w", symbol, err)
	}
	return cur, nil
}

// GetPrevDay reads the prior-day reference levels for a symbol.
// Returns ErrNotFound when none exist.
func (s *Store) GetPrevDay(ctx context.Context, symbol string) (*model.PrevDay, error) {
	data, err := s.client.Get(ctx, model.PrevDayKey(symbol)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get prevday %s: %w", symbol, err)
	}

	var pd model.PrevDay
	if err := json.Unmarshal([]byte(data), &pd); err != nil {
		return nil, fmt.Errorf("unmarshal prevday %s: %w", symbol, err)
	}
	return &pd, nil
}

// SetPrevDay writes the prior-day reference levels for a symbol.
func (s *Store) SetPrevDay(ctx context.Context, symbol string, pd model.PrevDay) error {
	data, err := json.Marshal(pd)
	if err != nil {
		return fmt.Errorf("marshal prevday: %w", err)
	}
	if err := s.client.Set(ctx, model.PrevDayKey(symbol), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set prevday %s: %w", symbol, err)
	}
	return nil
}

// Publish publishes a raw payload on a channel. Used to relay synthesized
// events (new-high updates) and order-subsystem settings pushes.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.client.Publish(ctx, channel, payload).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
