package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/model"
)

const (
	DefaultStoreTimeout = 5 * time.Second
	MaxContentLength    = 4000
	MaxPageSize         = 1000
)

// Settings holds tunables shared by the services.
type Settings struct {
	// StoreTimeout bounds every storage round trip of one operation.
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

func (s Settings) withDefaults() Settings {
	if s.StoreTimeout <= 0 {
		s.StoreTimeout = DefaultStoreTimeout
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

func withStoreDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

func validateID(what, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed %s %q", ErrInvalidArgument, what, id)
	}
	return nil
}

func requireUser(uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	return nil
}

// NopNotifier drops every push. Useful when no live transport is wired.
type NopNotifier struct{}

func (NopNotifier) Push(context.Context, string, model.Message) {}
