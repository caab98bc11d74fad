package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultDocumentTitle is used when a document is created without a title.
const DefaultDocumentTitle = "Untitled Document"

// ErrDocumentNotFound is returned by stores when no document has the given id.
var ErrDocumentNotFound = errors.New("document not found")

type Document struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title          string    `gorm:"not null;index:idx_documents_owner_title,priority:2" json:"title"`
	OwnerID        string    `gorm:"not null;index:idx_documents_owner_title,priority:1;<-:create" json:"owner_id"`
	OrganizationID *string   `gorm:"index;<-:create" json:"organization_id,omitempty"`
	InitialContent *string   `gorm:"type:text" json:"initial_content,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate assigns the store-side identifier.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// IsOwnedBy reports whether subject created the document.
func (d *Document) IsOwnedBy(subject string) bool {
	return subject != "" && d.OwnerID == subject
}

// BelongsToOrganization reports whether the document was created under orgID.
// A document without an organization belongs to none.
func (d *Document) BelongsToOrganization(orgID string) bool {
	return d.OrganizationID != nil && *d.OrganizationID != "" && *d.OrganizationID == orgID
}

// RoomInfo is the display projection of a document used by room rosters.
type RoomInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
