package businessflow

import (
	"context"
	"fmt"

	"github.com/florelabs/leaftag/app/services"
	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/repository"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthFlow turns a bearer token into an authenticated local user. Token
// verification is delegated to the token service; the flow owns the
// auto-provisioning of local user rows from token claims.
type AuthFlow interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// AuthFlowImpl implements AuthFlow
type AuthFlowImpl struct {
	userRepo     repository.UserRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewAuthFlow creates a new authentication flow
func NewAuthFlow(
	userRepo repository.UserRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) AuthFlow {
	return &AuthFlowImpl{
		userRepo:     userRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Authenticate validates the token and resolves or creates the local user
// keyed by the email claim. The get-or-create runs inside one transaction so
// N concurrent first-time authentications for the same email produce exactly
// one row. Every failure surfaces as an authentication failure to the
// middleware; the distinction between "bad token" and "no such user" never
// reaches the caller.
func (f *AuthFlowImpl) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := f.tokenService.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	// Username is seeded from the identity-service subject when present so
	// the same person keeps a stable handle across re-provisioning.
	candidate := &models.User{
		UUID:     uuid.New(),
		Email:    claims.Email,
		Username: utils.FirstNonEmpty(claims.Subject, claims.Email),
		IsActive: utils.ToPtr(true),
	}

	var user *models.User
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		resolved, created, err := f.userRepo.GetOrCreateByEmail(txCtx, candidate)
		if err != nil {
			return fmt.Errorf("failed to resolve user for email: %w", err)
		}

		// A row provisioned before the identity service exposed subjects may
		// still carry the email as username; fix it up in the same
		// transaction that resolved the user.
		if !created && claims.Subject != "" && resolved.Username == resolved.Email {
			resolved.Username = claims.Subject
			if err := f.userRepo.UpdateUsername(txCtx, resolved.ID, claims.Subject); err != nil {
				return fmt.Errorf("failed to update username: %w", err)
			}
		}

		user = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !utils.IsTrue(user.IsActive) {
		return nil, ErrAccountInactive
	}

	return user, nil
}
