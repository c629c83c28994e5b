// Package testing provides test utilities and database setup for testing the tag identity system
package testing

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with a unique email
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	suffix := rand.Intn(100000000)
	email := fmt.Sprintf("user%d@example.com", suffix)

	user := &models.User{
		UUID:     uuid.New(),
		Email:    email,
		Username: fmt.Sprintf("user%d", suffix),
		IsActive: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// RandomUID generates a random 14-hex-character chip UID in canonical
// uppercase form.
func RandomUID() string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(14)
	// NXP chip UIDs start with the 0x04 manufacturer byte
	b.WriteString("04")
	for i := 0; i < 12; i++ {
		b.WriteByte(hexDigits[rand.Intn(16)])
	}
	return b.String()
}

// CreateTestTag creates an unowned active tag with a random UID
func (tf *TestFixtures) CreateTestTag() (*models.NFCTag, error) {
	tag := &models.NFCTag{
		UUID:     uuid.New(),
		UID:      RandomUID(),
		IsActive: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create test tag: %w", err)
	}

	return tag, nil
}

// CreateOwnedTag creates an active tag owned by the given user
func (tf *TestFixtures) CreateOwnedTag(ownerID uint) (*models.NFCTag, error) {
	tag := &models.NFCTag{
		UUID:     uuid.New(),
		UID:      RandomUID(),
		OwnerID:  &ownerID,
		IsActive: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create owned test tag: %w", err)
	}

	return tag, nil
}

// CreateDeactivatedTag creates a retired tag that still records its last owner
func (tf *TestFixtures) CreateDeactivatedTag(ownerID uint) (*models.NFCTag, error) {
	tag := &models.NFCTag{
		UUID:     uuid.New(),
		UID:      RandomUID(),
		OwnerID:  &ownerID,
		IsActive: utils.ToPtr(false),
	}

	if err := tf.DB.DB.Create(tag).Error; err != nil {
		return nil, fmt.Errorf("failed to create deactivated test tag: %w", err)
	}

	return tag, nil
}

// CreateMultipleOwnedTags creates n active tags owned by the given user
func (tf *TestFixtures) CreateMultipleOwnedTags(ownerID uint, n int) ([]*models.NFCTag, error) {
	var tags []*models.NFCTag
	for i := 0; i < n; i++ {
		tag, err := tf.CreateOwnedTag(ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to create tag %d: %w", i, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
