package domain

import "time"

// AnonymousName is shown for callers whose profile carries no usable name.
const AnonymousName = "Anonymous"

// Identity is the verified caller of a request, built from identity provider
// claims. It is never stored as-is.
type Identity struct {
	Subject        string
	Name           string
	Email          string
	AvatarURL      string
	OrganizationID string
}

// DisplayName returns the caller's name or AnonymousName.
func (i Identity) DisplayName() string {
	if i.Name == "" {
		return AnonymousName
	}
	return i.Name
}

// User is the locally mirrored profile of an identity, refreshed on each
// authenticated request.
type User struct {
	ID        string `gorm:"primaryKey;type:varchar(255)"`
	Name      string
	Email     string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrganizationMember records that a user has acted under an organization.
type OrganizationMember struct {
	OrganizationID string `gorm:"primaryKey;type:varchar(255)"`
	UserID         string `gorm:"primaryKey;type:varchar(255)"`
	User           User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	LastSeenAt     time.Time
}

// PresenceUser is what the editor needs to render another participant.
type PresenceUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ToPresence picks the best available display name for u.
func (u *User) ToPresence() PresenceUser {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	if name == "" {
		name = AnonymousName
	}
	return PresenceUser{ID: u.ID, Name: name, Avatar: u.AvatarURL}
}
