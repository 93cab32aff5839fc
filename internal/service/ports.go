//go:generate go run go.uber.org/mock/mockgen -source=ports.go -destination=mocks/mock_ports.go -package=mocks
package service

import (
	"context"

	"github.com/shinyyama/rental-backend/internal/model"
)

// Directory answers identity questions owned by the user and listing
// catalog. OwnerOf returns repository.ErrNotFound for unknown listings.
type Directory interface {
	OwnerOf(ctx context.Context, listingID string) (string, error)
	UserExists(ctx context.Context, uid string) (bool, error)
}

// Notifier pushes a persisted message to the live sessions of one user.
// Delivery is best effort and never reports failure to the sender.
type Notifier interface {
	Push(ctx context.Context, userID string, msg model.Message)
}
