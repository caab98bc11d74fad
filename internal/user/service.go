package user

import (
	"context"
	defError "errors"
	"fmt"
	"strings"
	"time"

	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/errors"
	"collaborative-docs/redis"

	"go.uber.org/zap"
)

// Service defines the interface for user business logic
type Service interface {
	Sync(ctx context.Context, identity domain.Identity) error
	ListOrganizationUsers(ctx context.Context, caller domain.Identity, query string) ([]domain.PresenceUser, error)
}

// DefaultService implements Service
type DefaultService struct {
	repository   UserRepository
	cache        *redis.Cache
	syncInterval time.Duration
	rosterTTL    time.Duration
	logger       *zap.Logger
}

// NewService creates a new user service
func NewService(repository UserRepository, cache *redis.Cache, syncInterval, rosterTTL time.Duration, logger *zap.Logger) Service {
	return &DefaultService{
		repository:   repository,
		cache:        cache,
		syncInterval: syncInterval,
		rosterTTL:    rosterTTL,
		logger:       logger,
	}
}

func rosterVersionKey(organizationID string) string {
	return fmt.Sprintf("org:%s:users:version", organizationID)
}

// Sync mirrors identity into the local profile table. It runs at most once per
// sync interval for a given subject and organization.
func (s *DefaultService) Sync(ctx context.Context, identity domain.Identity) error {
	if identity.Subject == "" {
		return nil
	}

	claimKey := fmt.Sprintf("profile:sync:%s:%s", identity.Subject, identity.OrganizationID)
	if !s.cache.Claim(ctx, claimKey, s.syncInterval) {
		return nil
	}

	if err := s.write(ctx, identity); err != nil {
		// let the next request retry instead of waiting out the interval
		s.cache.Release(ctx, claimKey)
		return err
	}

	s.logger.Debug("profile synced",
		zap.String("subject", identity.Subject),
		zap.String("organization", identity.OrganizationID),
	)
	return nil
}

func (s *DefaultService) write(ctx context.Context, identity domain.Identity) error {
	now := time.Now().UTC()
	profile := &domain.User{
		ID:        identity.Subject,
		Name:      identity.Name,
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
		UpdatedAt: now,
	}
	if err := s.repository.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("upsert profile %s: %w", identity.Subject, err)
	}

	if identity.OrganizationID == "" {
		return nil
	}
	created, err := s.repository.TouchMembership(ctx, identity.OrganizationID, identity.Subject, now)
	if err != nil {
		return fmt.Errorf("record membership %s in %s: %w", identity.Subject, identity.OrganizationID, err)
	}
	if created {
		s.cache.IncrementVersion(ctx, rosterVersionKey(identity.OrganizationID))
	}
	return nil
}

// ListOrganizationUsers returns the people the caller can mention or see in
// presence: the members of the caller's organization, or only the caller
// when they act outside one. query filters by display name.
func (s *DefaultService) ListOrganizationUsers(ctx context.Context, caller domain.Identity, query string) ([]domain.PresenceUser, error) {
	var roster []domain.PresenceUser

	if caller.OrganizationID == "" {
		self, err := s.self(ctx, caller)
		if err != nil {
			return nil, err
		}
		roster = []domain.PresenceUser{self}
	} else {
		var err error
		roster, err = s.organizationRoster(ctx, caller.OrganizationID)
		if err != nil {
			return nil, err
		}
	}

	return filterByName(roster, query), nil
}

func (s *DefaultService) self(ctx context.Context, caller domain.Identity) (domain.PresenceUser, error) {
	profile, err := s.repository.FindByID(ctx, caller.Subject)
	if defError.Is(err, ErrUserNotFound) {
		// not mirrored yet; the token is as good a source as the table
		profile = &domain.User{
			ID:        caller.Subject,
			Name:      caller.Name,
			Email:     caller.Email,
			AvatarURL: caller.AvatarURL,
		}
	} else if err != nil {
		return domain.PresenceUser{}, errors.Unavailable(err)
	}
	return profile.ToPresence(), nil
}

func (s *DefaultService) organizationRoster(ctx context.Context, organizationID string) ([]domain.PresenceUser, error) {
	v := s.cache.GetVersion(ctx, rosterVersionKey(organizationID))
	cacheKey := fmt.Sprintf("org:%s:users:v:%d", organizationID, v)

	var roster []domain.PresenceUser
	if found, _ := s.cache.Get(ctx, cacheKey, &roster); found {
		return roster, nil
	}

	users, err := s.repository.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	roster = make([]domain.PresenceUser, 0, len(users))
	for i := range users {
		roster = append(roster, users[i].ToPresence())
	}

	_ = s.cache.Set(ctx, cacheKey, roster, s.rosterTTL)
	return roster, nil
}

func filterByName(roster []domain.PresenceUser, query string) []domain.PresenceUser {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return roster
	}

	filtered := make([]domain.PresenceUser, 0, len(roster))
	for _, u := range roster {
		if strings.Contains(strings.ToLower(u.Name), query) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}
