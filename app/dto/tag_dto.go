package dto

// NFCTagDTO is the external representation of a tag. The internal numeric ID
// never leaves the service; the UUID is the public handle.
type NFCTagDTO struct {
	UUID             string  `json:"uuid"`
	UID              string  `json:"uid"`
	Label            *string `json:"label,omitempty"`
	IsActive         bool    `json:"is_active"`
	Registered       bool    `json:"registered"`
	LinkedKind       *string `json:"linked_kind,omitempty"`
	LinkedObjectID   *int64  `json:"linked_object_id,omitempty"`
	LinkedObjectUUID *string `json:"linked_object_uuid,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// RegisterTagRequest claims a tag by chip UID, minting it on first sight
type RegisterTagRequest struct {
	UID string `json:"uid" validate:"required,uid_hex"`
}

// RegisterTagResult reports whether registration minted a fresh tag or
// claimed an existing registrable one
type RegisterTagResult struct {
	Tag     NFCTagDTO `json:"tag"`
	Created bool      `json:"created"`
}

// ScanTagRequest resolves a tag from the ASCII mirror of a physical scan
type ScanTagRequest struct {
	ASCIIMirror string `json:"ascii_mirror" validate:"required,len=20"`
}

// ScanTagResult carries the resolved tag plus the advisory replay verdict
// from the scan counter guard
type ScanTagResult struct {
	Tag      NFCTagDTO `json:"tag"`
	Counter  uint32    `json:"counter"`
	Replayed bool      `json:"replayed"`
}

// UpdateTagRequest updates the allow-listed mutable fields. The UID is
// immutable and never accepted here.
type UpdateTagRequest struct {
	Label *string `json:"label,omitempty" validate:"omitempty,max=255"`
}

// LinkTagRequest attaches the tag to an application entity. Exactly one of
// ObjectID and ObjectUUID must be set, matching the kind's key type.
type LinkTagRequest struct {
	Kind       string  `json:"kind" validate:"required,max=32"`
	ObjectID   *int64  `json:"object_id,omitempty"`
	ObjectUUID *string `json:"object_uuid,omitempty" validate:"omitempty,uuid"`
}

// ListTagsResult is the paginated listing payload
type ListTagsResult struct {
	Items  []NFCTagDTO `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
