package models

import (
	"time"

	"github.com/google/uuid"
)

// Link kinds form a closed registry. Each kind declares whether the target
// entity is integer- or UUID-keyed; a tag link carries exactly one of the two
// key columns, matching its kind.
const (
	LinkKindPlant    = "plant"
	LinkKindSpecimen = "specimen"
)

// LinkKeyType is the key type of a link kind's target entity.
type LinkKeyType string

const (
	LinkKeyInteger LinkKeyType = "integer"
	LinkKeyUUID    LinkKeyType = "uuid"
)

var linkKinds = map[string]LinkKeyType{
	LinkKindPlant:    LinkKeyInteger,
	LinkKindSpecimen: LinkKeyUUID,
}

// LinkKindKeyType returns the key type for a link kind, and whether the kind
// is known at all.
func LinkKindKeyType(kind string) (LinkKeyType, bool) {
	kt, ok := linkKinds[kind]
	return kt, ok
}

// NFCTag binds a physical chip UID to at most one owning user.
// Table: nfc_tags
// UID is immutable after mint and unique across the platform; UUID is the
// public correlation handle and is never reused, even after disconnect or
// deactivation. The linked_* columns hold the optional polymorphic link; a
// CHECK constraint keeps the two object-key columns mutually exclusive.
type NFCTag struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_nfc_tags_uuid" json:"uuid"`
	UID  string    `gorm:"size:14;not null;uniqueIndex:uk_nfc_tags_uid;index:idx_nfc_tags_uid" json:"uid"`

	OwnerID *uint `gorm:"index:idx_nfc_tags_owner_id" json:"owner_id,omitempty"`
	Owner   *User `gorm:"foreignKey:OwnerID;references:ID" json:"owner,omitempty"`

	IsActive *bool   `gorm:"default:true;index:idx_nfc_tags_is_active" json:"is_active"`
	Label    *string `gorm:"size:255" json:"label,omitempty"`

	LinkedKind       *string    `gorm:"size:32;index:idx_nfc_tags_linked_kind" json:"linked_kind,omitempty"`
	LinkedObjectID   *int64     `gorm:"index:idx_nfc_tags_linked_object_id" json:"linked_object_id,omitempty"`
	LinkedObjectUUID *uuid.UUID `gorm:"type:uuid;index:idx_nfc_tags_linked_object_uuid" json:"linked_object_uuid,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_nfc_tags_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (NFCTag) TableName() string {
	return "nfc_tags"
}

// IsRegistrable reports whether the tag can be claimed: active and currently
// unowned. Deactivated tags are never registrable again.
func (t *NFCTag) IsRegistrable() bool {
	return t.IsActive != nil && *t.IsActive && t.OwnerID == nil
}

// IsVisibleTo reports whether the tag belongs to the given user's visible
// set: active and owned by them.
func (t *NFCTag) IsVisibleTo(userID uint) bool {
	return t.IsActive != nil && *t.IsActive && t.OwnerID != nil && *t.OwnerID == userID
}

// IsLinked reports whether the tag carries a polymorphic link.
func (t *NFCTag) IsLinked() bool {
	return t.LinkedKind != nil
}

// NFCTagFilter represents filter criteria for tag queries
type NFCTagFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	UID           *string
	OwnerID       *uint
	HasOwner      *bool
	IsActive      *bool
	LinkedKind    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
