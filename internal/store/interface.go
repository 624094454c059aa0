package store

import (
	"context"
	"errors"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/internal/domain"
)

// ErrShareNotFound is returned when no share exists for a token.
var ErrShareNotFound = errors.New("share not found")

// ShareStore is the lookup collaborator consumed by the live subsystem.
// The live code never performs SQL work itself.
type ShareStore interface {
	// GetByToken returns the share metadata for a token, or
	// ErrShareNotFound. Inactive and expired shares are still
	// returned; access decisions happen at join time.
	GetByToken(ctx context.Context, shareToken string) (*domain.Share, error)

	// IncrementViewCount bumps the view counter for a share.
	IncrementViewCount(ctx context.Context, shareToken string) error
}
