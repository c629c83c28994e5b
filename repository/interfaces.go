// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/florelabs/leaftag/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for auto-provisioned users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, userUUID uuid.UUID) (*models.User, error)
	// GetOrCreateByEmail resolves the user for an email, inserting a new
	// active row when none exists. The insert is conflict-safe: two
	// concurrent calls for the same email both resolve to the single row
	// that won the insert. Returns the user and whether it was created.
	GetOrCreateByEmail(ctx context.Context, user *models.User) (*models.User, bool, error)
	UpdateUsername(ctx context.Context, userID uint, username string) error
}

// NFCTagRepository defines operations for NFC tag identities
type NFCTagRepository interface {
	Repository[models.NFCTag, models.NFCTagFilter]
	ByUID(ctx context.Context, uid string) (*models.NFCTag, error)
	ByUUID(ctx context.Context, tagUUID uuid.UUID) (*models.NFCTag, error)
	ListVisibleTo(ctx context.Context, ownerID uint, limit, offset int) ([]*models.NFCTag, error)
	// ClaimOwnership atomically sets the owner where the tag is currently
	// registrable (unowned and active). Returns false when the conditional
	// update matched no row, meaning another caller won the race or the tag
	// is owned or inactive.
	ClaimOwnership(ctx context.Context, tagID uint, ownerID uint) (bool, error)
	// ReleaseOwnership atomically clears the owner where the tag is
	// currently owned by ownerID. Returns false when the conditional update
	// matched no row.
	ReleaseOwnership(ctx context.Context, tagID uint, ownerID uint) (bool, error)
	// Deactivate sets is_active to false. Idempotent: deactivating an
	// already-inactive tag succeeds without touching the row state.
	Deactivate(ctx context.Context, tagID uint) error
	UpdateLabel(ctx context.Context, tagID uint, label *string) error
	// SetLink writes the polymorphic link columns; exactly one of objectID
	// and objectUUID must be non-nil, matching the kind's key type.
	SetLink(ctx context.Context, tagID uint, kind *string, objectID *int64, objectUUID *uuid.UUID) error
	Delete(ctx context.Context, tagID uint) error
}
