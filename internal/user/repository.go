package user

import (
	"context"
	"errors"
	"time"

	"collaborative-docs/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository defines the interface for user data access
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	TouchMembership(ctx context.Context, organizationID, userID string, seenAt time.Time) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]domain.User, error)
}

// UserRepositoryImpl implements UserRepository
type UserRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new user repository
func NewRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

// Upsert inserts the profile or refreshes the mirrored fields of an existing one.
func (r *UserRepositoryImpl) Upsert(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "avatar_url", "updated_at"}),
		}).
		Create(user).Error
}

// TouchMembership records that userID acted under organizationID at seenAt.
// It reports true when the pair was seen for the first time.
func (r *UserRepositoryImpl) TouchMembership(ctx context.Context, organizationID, userID string, seenAt time.Time) (bool, error) {
	member := domain.OrganizationMember{
		OrganizationID: organizationID,
		UserID:         userID,
		LastSeenAt:     seenAt,
	}
	result := r.db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	err := r.db.WithContext(ctx).
		Model(&domain.OrganizationMember{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Update("last_seen_at", seenAt).Error
	return false, err
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByOrganization returns every user seen under organizationID, by name.
func (r *UserRepositoryImpl) ListByOrganization(ctx context.Context, organizationID string) ([]domain.User, error) {
	var users []domain.User
	err := r.db.WithContext(ctx).
		Joins("JOIN organization_members ON organization_members.user_id = users.id").
		Where("organization_members.organization_id = ?", organizationID).
		Order("users.name ASC").
		Find(&users).Error
	return users, err
}
