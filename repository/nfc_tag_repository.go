package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NFCTagRepositoryImpl implements NFCTagRepository interface
type NFCTagRepositoryImpl struct {
	*BaseRepository[models.NFCTag, models.NFCTagFilter]
}

// NewNFCTagRepository creates a new NFC tag repository
func NewNFCTagRepository(db *gorm.DB) NFCTagRepository {
	return &NFCTagRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NFCTag, models.NFCTagFilter](db),
	}
}

// ByUID retrieves a tag by its chip UID
func (r *NFCTagRepositoryImpl) ByUID(ctx context.Context, uid string) (*models.NFCTag, error) {
	db := r.getDB(ctx)
	var row models.NFCTag
	if err := db.Where("uid = ?", uid).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find tag by uid: %w", err)
	}
	return &row, nil
}

// ByUUID retrieves a tag by its public UUID
func (r *NFCTagRepositoryImpl) ByUUID(ctx context.Context, tagUUID uuid.UUID) (*models.NFCTag, error) {
	db := r.getDB(ctx)
	var row models.NFCTag
	if err := db.Where("uuid = ?", tagUUID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find tag by uuid: %w", err)
	}
	return &row, nil
}

// ListVisibleTo returns the active tags owned by the given user
func (r *NFCTagRepositoryImpl) ListVisibleTo(ctx context.Context, ownerID uint, limit, offset int) ([]*models.NFCTag, error) {
	filter := models.NFCTagFilter{
		OwnerID:  &ownerID,
		IsActive: utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "id DESC", limit, offset)
}

// ClaimOwnership performs the registration check-then-set as one conditional
// UPDATE. The WHERE clause is the registrability predicate, so among N racing
// claims at most one matches a row; everyone else gets RowsAffected == 0.
func (r *NFCTagRepositoryImpl) ClaimOwnership(ctx context.Context, tagID uint, ownerID uint) (claimed bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.NFCTag{}).
		Where("id = ? AND owner_id IS NULL AND is_active = ?", tagID, true).
		Updates(map[string]any{
			"owner_id":   ownerID,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = fmt.Errorf("failed to claim tag ownership: %w", result.Error)
		return false, err
	}

	return result.RowsAffected > 0, nil
}

// ReleaseOwnership clears the owner only when the caller currently holds it.
func (r *NFCTagRepositoryImpl) ReleaseOwnership(ctx context.Context, tagID uint, ownerID uint) (released bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.NFCTag{}).
		Where("id = ? AND owner_id = ?", tagID, ownerID).
		Updates(map[string]any{
			"owner_id":   nil,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = fmt.Errorf("failed to release tag ownership: %w", result.Error)
		return false, err
	}

	return result.RowsAffected > 0, nil
}

// Deactivate retires the tag. Matching zero rows is fine: the tag was
// already inactive and the operation is idempotent.
func (r *NFCTagRepositoryImpl) Deactivate(ctx context.Context, tagID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.NFCTag{}).
		Where("id = ? AND is_active = ?", tagID, true).
		Updates(map[string]any{
			"is_active":  false,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = fmt.Errorf("failed to deactivate tag: %w", result.Error)
		return err
	}
	return nil
}

// UpdateLabel writes the only caller-mutable tag field. The UID column is
// never part of any update statement in this repository.
func (r *NFCTagRepositoryImpl) UpdateLabel(ctx context.Context, tagID uint, label *string) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.NFCTag{}).
		Where("id = ?", tagID).
		Updates(map[string]any{
			"label":      label,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = fmt.Errorf("failed to update tag label: %w", result.Error)
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("tag not found with ID %d", tagID)
		return err
	}
	return nil
}

// SetLink writes the polymorphic link columns as one unit so a tag can never
// end up with both key columns populated.
func (r *NFCTagRepositoryImpl) SetLink(ctx context.Context, tagID uint, kind *string, objectID *int64, objectUUID *uuid.UUID) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Model(&models.NFCTag{}).
		Where("id = ?", tagID).
		Updates(map[string]any{
			"linked_kind":        kind,
			"linked_object_id":   objectID,
			"linked_object_uuid": objectUUID,
			"updated_at":         utils.UTCNow(),
		})
	if result.Error != nil {
		err = fmt.Errorf("failed to set tag link: %w", result.Error)
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("tag not found with ID %d", tagID)
		return err
	}
	return nil
}

// Delete hard-removes the tag row
func (r *NFCTagRepositoryImpl) Delete(ctx context.Context, tagID uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	result := db.Delete(&models.NFCTag{}, tagID)
	if result.Error != nil {
		err = fmt.Errorf("failed to delete tag: %w", result.Error)
		return err
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *NFCTagRepositoryImpl) applyFilter(query *gorm.DB, filter models.NFCTagFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.UID != nil {
		query = query.Where("uid = ?", *filter.UID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.HasOwner != nil {
		if *filter.HasOwner {
			query = query.Where("owner_id IS NOT NULL")
		} else {
			query = query.Where("owner_id IS NULL")
		}
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.LinkedKind != nil {
		query = query.Where("linked_kind = ?", *filter.LinkedKind)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves tags based on filter criteria
func (r *NFCTagRepositoryImpl) ByFilter(ctx context.Context, filter models.NFCTagFilter, orderBy string, limit, offset int) ([]*models.NFCTag, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.NFCTag{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.NFCTag
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find tags by filter: %w", err)
	}
	return rows, nil
}

// Count returns the number of tags matching the filter
func (r *NFCTagRepositoryImpl) Count(ctx context.Context, filter models.NFCTagFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.NFCTag{})
	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count tags: %w", err)
	}
	return count, nil
}

// Exists checks if any tag matching the filter exists
func (r *NFCTagRepositoryImpl) Exists(ctx context.Context, filter models.NFCTagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
