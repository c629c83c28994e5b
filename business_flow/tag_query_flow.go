package businessflow

import (
	"context"

	"github.com/florelabs/leaftag/app/dto"
	"github.com/florelabs/leaftag/app/services"
	"github.com/florelabs/leaftag/mirror"
	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/repository"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
)

// TagQueryFlow serves the read side: listing and resolving tags through the
// caller's visibility window and decoding scanned ASCII mirrors.
type TagQueryFlow interface {
	ListTags(ctx context.Context, userID uint, limit, offset int) (*dto.ListTagsResult, error)
	GetTag(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error)
	ScanLookup(ctx context.Context, req *dto.ScanTagRequest, userID uint) (*dto.ScanTagResult, error)
}

// TagQueryFlowImpl implements TagQueryFlow
type TagQueryFlowImpl struct {
	tagRepo      repository.NFCTagRepository
	counterGuard services.ScanCounterGuard
}

// NewTagQueryFlow creates a new tag query flow
func NewTagQueryFlow(tagRepo repository.NFCTagRepository, counterGuard services.ScanCounterGuard) TagQueryFlow {
	if counterGuard == nil {
		counterGuard = services.NewNoopScanCounterGuard()
	}
	return &TagQueryFlowImpl{
		tagRepo:      tagRepo,
		counterGuard: counterGuard,
	}
}

// ListTags returns the caller's active tags, newest first, with the total
// count for pagination.
func (f *TagQueryFlowImpl) ListTags(ctx context.Context, userID uint, limit, offset int) (*dto.ListTagsResult, error) {
	if limit <= 0 {
		limit = utils.DefaultPageSize
	}
	if limit > utils.MaxPageSize {
		limit = utils.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	tags, err := f.tagRepo.ListVisibleTo(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	total, err := f.tagRepo.Count(ctx, models.NFCTagFilter{
		OwnerID:  &userID,
		IsActive: utils.ToPtr(true),
	})
	if err != nil {
		return nil, err
	}

	items := make([]dto.NFCTagDTO, 0, len(tags))
	for _, tag := range tags {
		items = append(items, ToNFCTagDTO(*tag))
	}

	return &dto.ListTagsResult{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// GetTag resolves a tag by public UUID within the caller's visible set.
func (f *TagQueryFlowImpl) GetTag(ctx context.Context, tagUUID uuid.UUID, userID uint) (*dto.NFCTagDTO, error) {
	tag, err := f.tagRepo.ByUUID(ctx, tagUUID)
	if err != nil {
		return nil, err
	}
	if tag == nil || !tag.IsVisibleTo(userID) {
		return nil, ErrTagNotFound
	}

	result := ToNFCTagDTO(*tag)
	return &result, nil
}

// ScanLookup decodes an ASCII mirror captured from a physical scan and
// resolves the tag behind it through the caller's visibility window. The scan
// counter feeds the replay guard; a stale counter marks the result as
// replayed but never rejects the lookup, and a guard outage degrades to
// reporting fresh.
func (f *TagQueryFlowImpl) ScanLookup(ctx context.Context, req *dto.ScanTagRequest, userID uint) (*dto.ScanTagResult, error) {
	uid, counter, err := mirror.ParseMirror(req.ASCIIMirror)
	if err != nil {
		return nil, err
	}

	tag, err := f.tagRepo.ByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if tag == nil || !tag.IsVisibleTo(userID) {
		return nil, ErrTagNotFound
	}

	replayed, err := f.counterGuard.Observe(ctx, uid, counter)
	if err != nil {
		replayed = false
	}

	return &dto.ScanTagResult{
		Tag:      ToNFCTagDTO(*tag),
		Counter:  counter,
		Replayed: replayed,
	}, nil
}
