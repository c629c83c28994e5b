// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/florelabs/leaftag/app/dto"
	"github.com/florelabs/leaftag/models"
	"github.com/florelabs/leaftag/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client-related information for audit trails
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToNFCTagDTO converts a tag model to its external representation
func ToNFCTagDTO(tag models.NFCTag) dto.NFCTagDTO {
	d := dto.NFCTagDTO{
		UUID:       tag.UUID.String(),
		UID:        tag.UID,
		Label:      tag.Label,
		IsActive:   utils.IsTrue(tag.IsActive),
		Registered: tag.OwnerID != nil,
		LinkedKind: tag.LinkedKind,
		CreatedAt:  tag.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  tag.UpdatedAt.Format(time.RFC3339),
	}
	if tag.LinkedObjectID != nil {
		d.LinkedObjectID = tag.LinkedObjectID
	}
	if tag.LinkedObjectUUID != nil {
		s := tag.LinkedObjectUUID.String()
		d.LinkedObjectUUID = &s
	}
	return d
}
