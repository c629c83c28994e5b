package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/florelabs/leaftag/app/dto"
	"github.com/florelabs/leaftag/mirror"
	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/repository"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagFlow owns every identity-mutating operation on NFC tags. Each operation
// is atomic with respect to the store; the registration and disconnect races
// are settled by conditional updates inside the repository, never by a
// read-then-write across unguarded steps.
type TagFlow interface {
	Mint(ctx context.Context, uid string) (*dto.NFCTagDTO, error)
	Register(ctx context.Context, req *dto.RegisterTagRequest, userID uint, metadata *ClientMetadata) (*dto.RegisterTagResult, error)
	Update(ctx context.Context, tagUUID uuid.UUID, userID uint, req *dto.UpdateTagRequest) (*dto.NFCTagDTO, error)
	Disconnect(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error)
	Deactivate(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error)
	Link(ctx context.Context, tagUUID uuid.UUID, userID uint, req *dto.LinkTagRequest) (*dto.NFCTagDTO, error)
	Unlink(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error)
	Delete(ctx context.Context, tagUUID uuid.UUID, userID uint) error
}

// TagFlowImpl implements TagFlow
type TagFlowImpl struct {
	tagRepo repository.NFCTagRepository
	db      *gorm.DB
}

// NewTagFlow creates a new tag ownership flow
func NewTagFlow(tagRepo repository.NFCTagRepository, db *gorm.DB) TagFlow {
	return &TagFlowImpl{
		tagRepo: tagRepo,
		db:      db,
	}
}

// Mint creates an unowned, active tag for a UID seen for the first time.
func (f *TagFlowImpl) Mint(ctx context.Context, uid string) (*dto.NFCTagDTO, error) {
	if err := mirror.ValidateUID(uid); err != nil {
		return nil, err
	}
	canonical := mirror.CanonicalUID(uid)

	var minted *models.NFCTag
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, err := f.tagRepo.ByUID(txCtx, canonical)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicateUID
		}

		tag := &models.NFCTag{
			UUID:     uuid.New(),
			UID:      canonical,
			IsActive: utils.ToPtr(true),
		}
		if err := f.tagRepo.Save(txCtx, tag); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateUID
			}
			return fmt.Errorf("failed to mint tag: %w", err)
		}

		minted = tag
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := ToNFCTagDTO(*minted)
	return &result, nil
}

// Register claims a tag by chip UID for the calling user, minting it when the
// UID has never been seen. The claim on an existing tag is a single
// conditional update on the registrability predicate; among concurrent
// claims at most one succeeds and the losers observe ErrTagNotRegistrable.
func (f *TagFlowImpl) Register(ctx context.Context, req *dto.RegisterTagRequest, userID uint, metadata *ClientMetadata) (*dto.RegisterTagResult, error) {
	if err := mirror.ValidateUID(req.UID); err != nil {
		return nil, err
	}
	canonical := mirror.CanonicalUID(req.UID)

	var registered *models.NFCTag
	var created bool
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, err := f.tagRepo.ByUID(txCtx, canonical)
		if err != nil {
			return err
		}

		if existing == nil {
			tag := &models.NFCTag{
				UUID:     uuid.New(),
				UID:      canonical,
				OwnerID:  &userID,
				IsActive: utils.ToPtr(true),
			}
			if err := f.tagRepo.Save(txCtx, tag); err != nil {
				// A concurrent registration minted the row between our read
				// and write; the tag exists and is owned, so the claim lost.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrTagNotRegistrable
				}
				return fmt.Errorf("failed to mint tag: %w", err)
			}
			registered = tag
			created = true
			return nil
		}

		claimed, err := f.tagRepo.ClaimOwnership(txCtx, existing.ID, userID)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrTagNotRegistrable
		}

		// Re-read to confirm and to return the committed row state.
		confirmed, err := f.tagRepo.ByID(txCtx, existing.ID)
		if err != nil {
			return err
		}
		if confirmed == nil || confirmed.OwnerID == nil || *confirmed.OwnerID != userID {
			return ErrTagNotRegistrable
		}

		registered = confirmed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if metadata != nil {
		action := "claimed"
		if created {
			action = "minted"
		}
		log.Printf("Tag %s %s by user %d ip=%s request_id=%s",
			canonical, action, userID, metadata.IPAddress, metadata.RequestID)
	}

	return &dto.RegisterTagResult{
		Tag:     ToNFCTagDTO(*registered),
		Created: created,
	}, nil
}

// Update rewrites the allow-listed mutable fields of a visible tag. The UID
// column is immutable and not reachable from this operation. A request with
// no fields set is a no-op that returns the current row state.
func (f *TagFlowImpl) Update(ctx context.Context, tagUUID uuid.UUID, userID uint, req *dto.UpdateTagRequest) (*dto.NFCTagDTO, error) {
	var updated *models.NFCTag
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		tag, err := f.visibleTag(txCtx, tagUUID, userID)
		if err != nil {
			return err
		}

		if req.Label == nil {
			updated = tag
			return nil
		}

		if err := f.tagRepo.UpdateLabel(txCtx, tag.ID, req.Label); err != nil {
			return err
		}

		updated, err = f.tagRepo.ByID(txCtx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := ToNFCTagDTO(*updated)
	return &result, nil
}

// Disconnect clears ownership of a tag the caller owns. The tag stays active
// and becomes registrable again by anyone.
func (f *TagFlowImpl) Disconnect(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	var disconnected *models.NFCTag
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		tag, err := f.visibleTag(txCtx, tagUUID, userID)
		if err != nil {
			return err
		}

		released, err := f.tagRepo.ReleaseOwnership(txCtx, tag.ID, userID)
		if err != nil {
			return err
		}
		if !released {
			// Ownership moved between the visibility read and the
			// conditional update.
			return ErrTagNotOwned
		}

		disconnected, err = f.tagRepo.ByID(txCtx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := ToNFCTagDTO(*disconnected)
	return &result, nil
}

// Deactivate retires a visible tag. Idempotent: a second deactivation of the
// same tag reports success with the unchanged row.
func (f *TagFlowImpl) Deactivate(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	var deactivated *models.NFCTag
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		tag, err := f.tagRepo.ByUUID(txCtx, tagUUID)
		if err != nil {
			return err
		}
		if tag == nil {
			return ErrTagNotFound
		}
		// Ownership survives deactivation, so the owner check works for both
		// the first call and idempotent repeats on an inactive tag.
		if tag.OwnerID == nil || *tag.OwnerID != userID {
			return ErrTagNotFound
		}

		if err := f.tagRepo.Deactivate(txCtx, tag.ID); err != nil {
			return err
		}

		deactivated, err = f.tagRepo.ByID(txCtx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := ToNFCTagDTO(*deactivated)
	return &result, nil
}

// Link attaches the tag to an application entity. The kind registry is
// closed; the object key must match the kind's declared key type and a tag
// carries at most one link.
func (f *TagFlowImpl) Link(ctx context.Context, tagUUID uuid.UUID, userID uint, req *dto.LinkTagRequest) (*dto.NFCTagDTO, error) {
	keyType, ok := models.LinkKindKeyType(req.Kind)
	if !ok {
		return nil, ErrUnknownLinkKind
	}

	var objectUUID *uuid.UUID
	if req.ObjectUUID != nil {
		parsed, err := uuid.Parse(*req.ObjectUUID)
		if err != nil {
			return nil, ErrLinkKeyMismatch
		}
		objectUUID = &parsed
	}

	switch keyType {
	case models.LinkKeyInteger:
		if req.ObjectID == nil || objectUUID != nil {
			return nil, ErrLinkKeyMismatch
		}
	case models.LinkKeyUUID:
		if objectUUID == nil || req.ObjectID != nil {
			return nil, ErrLinkKeyMismatch
		}
	}

	var linked *models.NFCTag
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		tag, err := f.visibleTag(txCtx, tagUUID, userID)
		if err != nil {
			return err
		}
		if tag.IsLinked() {
			return ErrTagAlreadyLinked
		}

		if err := f.tagRepo.SetLink(txCtx, tag.ID, &req.Kind, req.ObjectID, objectUUID); err != nil {
			return err
		}

		linked, err = f.tagRepo.ByID(txCtx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := ToNFCTagDTO(*linked)
	return &result, nil
}

// Unlink detaches the polymorphic reference from a visible tag. Unlinking an
// unlinked tag is a no-op success.
func (f *TagFlowImpl) Unlink(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	var unlinked *models.NFCTag
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		tag, err := f.visibleTag(txCtx, tagUUID, userID)
		if err != nil {
			return err
		}

		if tag.IsLinked() {
			if err := f.tagRepo.SetLink(txCtx, tag.ID, nil, nil, nil); err != nil {
				return err
			}
		}

		unlinked, err = f.tagRepo.ByID(txCtx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := ToNFCTagDTO(*unlinked)
	return &result, nil
}

// Delete hard-removes a visible tag. This bypasses the soft lifecycle and is
// reserved for the tag's owner; prefer Disconnect or Deactivate.
func (f *TagFlowImpl) Delete(ctx context.Context, tagUUID uuid.UUID, userID uint) error {
	return repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		tag, err := f.visibleTag(txCtx, tagUUID, userID)
		if err != nil {
			return err
		}

		if err := f.tagRepo.Delete(txCtx, tag.ID); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		return nil
	})
}

// visibleTag resolves a tag by public UUID through the caller's visible set.
// Absent and not-visible are indistinguishable to callers, which is what
// keeps UID/UUID probing from leaking other users' tags.
func (f *TagFlowImpl) visibleTag(ctx context.Context, tagUUID uuid.UUID, userID uint) (*models.NFCTag, error) {
	tag, err := f.tagRepo.ByUUID(ctx, tagUUID)
	if err != nil {
		return nil, err
	}
	if tag == nil || !tag.IsVisibleTo(userID) {
		return nil, ErrTagNotFound
	}
	return tag, nil
}
