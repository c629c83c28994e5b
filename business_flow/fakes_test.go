package businessflow

import (
	"context"
	"sort"
	"sync"

	"github.com/florelabs/leaftag/app/services"
	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeTagRepo is a mutex-guarded in-memory NFCTagRepository. The conditional
// mutations hold the lock across check and write, matching the atomicity the
// SQL implementation gets from single conditional UPDATE statements.
type fakeTagRepo struct {
	mu     sync.Mutex
	nextID uint
	tags   map[uint]*models.NFCTag
}

func newFakeTagRepo() *fakeTagRepo {
	return &fakeTagRepo{tags: make(map[uint]*models.NFCTag)}
}

func cloneTag(t *models.NFCTag) *models.NFCTag {
	c := *t
	return &c
}

func (r *fakeTagRepo) ByID(ctx context.Context, id uint) (*models.NFCTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tags[id]; ok {
		return cloneTag(t), nil
	}
	return nil, nil
}

func (r *fakeTagRepo) ByUID(ctx context.Context, uid string) (*models.NFCTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.UID == uid {
			return cloneTag(t), nil
		}
	}
	return nil, nil
}

func (r *fakeTagRepo) ByUUID(ctx context.Context, tagUUID uuid.UUID) (*models.NFCTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.UUID == tagUUID {
			return cloneTag(t), nil
		}
	}
	return nil, nil
}

func (r *fakeTagRepo) Save(ctx context.Context, tag *models.NFCTag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.UID == tag.UID {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	tag.ID = r.nextID
	tag.CreatedAt = utils.UTCNow()
	tag.UpdatedAt = tag.CreatedAt
	r.tags[tag.ID] = cloneTag(tag)
	return nil
}

func (r *fakeTagRepo) matchFilter(t *models.NFCTag, filter models.NFCTagFilter) bool {
	if filter.OwnerID != nil && (t.OwnerID == nil || *t.OwnerID != *filter.OwnerID) {
		return false
	}
	if filter.IsActive != nil && utils.IsTrue(t.IsActive) != *filter.IsActive {
		return false
	}
	if filter.UID != nil && t.UID != *filter.UID {
		return false
	}
	if filter.HasOwner != nil && (t.OwnerID != nil) != *filter.HasOwner {
		return false
	}
	return true
}

func (r *fakeTagRepo) ByFilter(ctx context.Context, filter models.NFCTagFilter, orderBy string, limit, offset int) ([]*models.NFCTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []*models.NFCTag
	for _, t := range r.tags {
		if r.matchFilter(t, filter) {
			rows = append(rows, cloneTag(t))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	if offset > 0 {
		if offset >= len(rows) {
			return nil, nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (r *fakeTagRepo) Count(ctx context.Context, filter models.NFCTagFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, t := range r.tags {
		if r.matchFilter(t, filter) {
			count++
		}
	}
	return count, nil
}

func (r *fakeTagRepo) Exists(ctx context.Context, filter models.NFCTagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

func (r *fakeTagRepo) ListVisibleTo(ctx context.Context, ownerID uint, limit, offset int) ([]*models.NFCTag, error) {
	return r.ByFilter(ctx, models.NFCTagFilter{
		OwnerID:  &ownerID,
		IsActive: utils.ToPtr(true),
	}, "", limit, offset)
}

func (r *fakeTagRepo) ClaimOwnership(ctx context.Context, tagID uint, ownerID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[tagID]
	if !ok || !t.IsRegistrable() {
		return false, nil
	}
	t.OwnerID = &ownerID
	t.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (r *fakeTagRepo) ReleaseOwnership(ctx context.Context, tagID uint, ownerID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[tagID]
	if !ok || t.OwnerID == nil || *t.OwnerID != ownerID {
		return false, nil
	}
	t.OwnerID = nil
	t.UpdatedAt = utils.UTCNow()
	return true, nil
}

func (r *fakeTagRepo) Deactivate(ctx context.Context, tagID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tags[tagID]; ok && utils.IsTrue(t.IsActive) {
		t.IsActive = utils.ToPtr(false)
		t.UpdatedAt = utils.UTCNow()
	}
	return nil
}

func (r *fakeTagRepo) UpdateLabel(ctx context.Context, tagID uint, label *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tags[tagID]; ok {
		t.Label = label
		t.UpdatedAt = utils.UTCNow()
	}
	return nil
}

func (r *fakeTagRepo) SetLink(ctx context.Context, tagID uint, kind *string, objectID *int64, objectUUID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tags[tagID]; ok {
		t.LinkedKind = kind
		t.LinkedObjectID = objectID
		t.LinkedObjectUUID = objectUUID
		t.UpdatedAt = utils.UTCNow()
	}
	return nil
}

func (r *fakeTagRepo) Delete(ctx context.Context, tagID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tags, tagID)
	return nil
}

func tagFilterByUID(uid string) models.NFCTagFilter {
	return models.NFCTagFilter{UID: &uid}
}

func userFilterByEmail(email string) models.UserFilter {
	return models.UserFilter{Email: &email}
}

// fakeUserRepo is a mutex-guarded in-memory UserRepository keyed by email.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*models.User)}
}

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *fakeUserRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *fakeUserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) ByUUID(ctx context.Context, userUUID uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.UUID == userUUID {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Save(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = utils.UTCNow()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *fakeUserRepo) GetOrCreateByEmail(ctx context.Context, user *models.User) (*models.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return cloneUser(u), false, nil
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = utils.UTCNow()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), true, nil
}

func (r *fakeUserRepo) UpdateUsername(ctx context.Context, userID uint, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Username = username
	u.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *fakeUserRepo) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []*models.User
	for _, u := range r.users {
		if filter.Email != nil && u.Email != *filter.Email {
			continue
		}
		rows = append(rows, cloneUser(u))
	}
	return rows, nil
}

func (r *fakeUserRepo) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(rows)), err
}

func (r *fakeUserRepo) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	return c > 0, err
}

// stubTokenService returns a fixed verification outcome.
type stubTokenService struct {
	claims *services.TokenClaims
	err    error
}

func (s *stubTokenService) ValidateToken(token string) (*services.TokenClaims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

// stubCounterGuard returns a fixed replay verdict.
type stubCounterGuard struct {
	replayed bool
	err      error
	observed []uint32
	mu       sync.Mutex
}

func (g *stubCounterGuard) Observe(ctx context.Context, uid string, counter uint32) (bool, error) {
	g.mu.Lock()
	g.observed = append(g.observed, counter)
	g.mu.Unlock()
	return g.replayed, g.err
}
