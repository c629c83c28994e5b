// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNFCTagIsRegistrable(t *testing.T) {
	ownerID := uint(1)

	cases := []struct {
		name string
		tag  models.NFCTag
		want bool
	}{
		{"active unowned", models.NFCTag{IsActive: utils.ToPtr(true)}, true},
		{"active owned", models.NFCTag{IsActive: utils.ToPtr(true), OwnerID: &ownerID}, false},
		{"inactive unowned", models.NFCTag{IsActive: utils.ToPtr(false)}, false},
		{"inactive owned", models.NFCTag{IsActive: utils.ToPtr(false), OwnerID: &ownerID}, false},
		{"nil active flag", models.NFCTag{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.tag.IsRegistrable())
		})
	}
}

func TestNFCTagIsVisibleTo(t *testing.T) {
	ownerID := uint(1)

	tag := models.NFCTag{IsActive: utils.ToPtr(true), OwnerID: &ownerID}
	assert.True(t, tag.IsVisibleTo(1))
	assert.False(t, tag.IsVisibleTo(2))

	inactive := models.NFCTag{IsActive: utils.ToPtr(false), OwnerID: &ownerID}
	assert.False(t, inactive.IsVisibleTo(1))

	unowned := models.NFCTag{IsActive: utils.ToPtr(true)}
	assert.False(t, unowned.IsVisibleTo(1))
}

func TestNFCTagIsLinked(t *testing.T) {
	assert.False(t, (&models.NFCTag{}).IsLinked())

	kind := models.LinkKindPlant
	objectID := int64(42)
	linked := models.NFCTag{LinkedKind: &kind, LinkedObjectID: &objectID}
	assert.True(t, linked.IsLinked())
}

func TestLinkKindRegistry(t *testing.T) {
	kt, ok := models.LinkKindKeyType(models.LinkKindPlant)
	assert.True(t, ok)
	assert.Equal(t, models.LinkKeyInteger, kt)

	kt, ok = models.LinkKindKeyType(models.LinkKindSpecimen)
	assert.True(t, ok)
	assert.Equal(t, models.LinkKeyUUID, kt)

	_, ok = models.LinkKindKeyType("pot")
	assert.False(t, ok)

	// Kind lookups are case-sensitive
	_, ok = models.LinkKindKeyType("Plant")
	assert.False(t, ok)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", models.User{}.TableName())
	assert.Equal(t, "nfc_tags", models.NFCTag{}.TableName())
}

func TestTagUUIDIsStableHandle(t *testing.T) {
	id := uuid.New()
	tag := models.NFCTag{UUID: id, UID: "04A1B2C3D4E5F6", IsActive: utils.ToPtr(true)}
	assert.Equal(t, id, tag.UUID)
	assert.Len(t, tag.UID, 14)
}
