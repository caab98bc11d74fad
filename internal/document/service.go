package document

import (
	"collaborative-docs/internal/domain"
	"collaborative-docs/internal/errors"
	"collaborative-docs/internal/worker"
	"collaborative-docs/redis"
	"context"
	defError "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RemovedRoomName labels rooms whose document no longer exists.
const RemovedRoomName = "[Removed]"

type Service interface {
	CreateDocument(ctx context.Context, caller domain.Identity, title string, initialContent *string) (*domain.Document, error)
	ListDocuments(ctx context.Context, caller domain.Identity, search string, page, pageSize int) (*PaginatedDocuments, error)
	GetDocument(ctx context.Context, caller domain.Identity, docID string) (*domain.Document, error)
	RenameDocument(ctx context.Context, caller domain.Identity, docID string, title string) (*domain.Document, error)
	RemoveDocument(ctx context.Context, caller domain.Identity, docID string) error
	GetRoomsInfo(ctx context.Context, ids []string) ([]domain.RoomInfo, error)
}

// RoomRemover tears down the realtime room of a deleted document.
type RoomRemover interface {
	DeleteRoom(ctx context.Context, roomID string) error
}

type TaskSubmitter interface {
	Submit(t worker.Task)
}

type DefaultService struct {
	repository DocumentRepository
	cache      *redis.Cache
	cacheTTL   time.Duration
	rooms      RoomRemover
	pool       TaskSubmitter
	logger     *zap.Logger
}

func NewService(
	repository DocumentRepository,
	cache *redis.Cache,
	cacheTTL time.Duration,
	rooms RoomRemover,
	pool TaskSubmitter,
	logger *zap.Logger,
) Service {
	return &DefaultService{
		repository: repository,
		cache:      cache,
		cacheTTL:   cacheTTL,
		rooms:      rooms,
		pool:       pool,
		logger:     logger,
	}
}

type PaginatedDocuments struct {
	Data []domain.Document `json:"data"`
	Meta DocumentsMeta     `json:"meta"`
}

func versionKey(ownerID string) string {
	return fmt.Sprintf("user:%s:docs:version", ownerID)
}

func (s *DefaultService) CreateDocument(ctx context.Context, caller domain.Identity, title string, initialContent *string) (*domain.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultDocumentTitle
	}

	doc := &domain.Document{
		Title:          title,
		OwnerID:        caller.Subject,
		InitialContent: initialContent,
	}
	if caller.OrganizationID != "" {
		org := caller.OrganizationID
		doc.OrganizationID = &org
	}

	if err := s.repository.Create(ctx, doc); err != nil {
		return nil, errors.Unavailable(err)
	}

	// increase cache key, so any new fetch will get new version
	s.cache.IncrementVersion(ctx, versionKey(caller.Subject))
	return doc, nil
}

func (s *DefaultService) ListDocuments(ctx context.Context, caller domain.Identity, search string, page, pageSize int) (*PaginatedDocuments, error) {
	// Get the current data version for this user's documents
	v := s.cache.GetVersion(ctx, versionKey(caller.Subject))
	cacheKey := fmt.Sprintf("docs:u:%s:v:%d:p:%d:ps:%d:q:%s",
		caller.Subject, v, page, pageSize, url.QueryEscape(strings.TrimSpace(search)))

	var result PaginatedDocuments
	// get data from cache
	if found, _ := s.cache.Get(ctx, cacheKey, &result); found {
		return &result, nil
	}

	documents, meta, err := s.repository.ListByOwner(ctx, caller.Subject, search, page, pageSize)
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	if documents == nil {
		documents = []domain.Document{}
	}
	result = PaginatedDocuments{Data: documents, Meta: meta}

	_ = s.cache.Set(ctx, cacheKey, result, s.cacheTTL)
	return &result, nil
}

// GetDocument lets owners and members of the document's organization read it.
func (s *DefaultService) GetDocument(ctx context.Context, caller domain.Identity, docID string) (*domain.Document, error) {
	doc, err := s.find(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !doc.IsOwnedBy(caller.Subject) && !doc.BelongsToOrganization(caller.OrganizationID) {
		return nil, errors.Unauthorized("Unauthorized", nil)
	}
	return doc, nil
}

func (s *DefaultService) RenameDocument(ctx context.Context, caller domain.Identity, docID string, title string) (*domain.Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.BadRequest("Title cannot be empty", nil)
	}

	doc, err := s.findOwned(ctx, caller, docID)
	if err != nil {
		return nil, err
	}

	if err := s.repository.UpdateTitle(ctx, docID, title); err != nil {
		if defError.Is(err, domain.ErrDocumentNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, errors.Unavailable(err)
	}
	doc.Title = title
	doc.UpdatedAt = time.Now().UTC()

	// increase cache key, so any new fetch will get new version
	s.cache.IncrementVersion(ctx, versionKey(caller.Subject))
	return doc, nil
}

func (s *DefaultService) RemoveDocument(ctx context.Context, caller domain.Identity, docID string) error {
	if _, err := s.findOwned(ctx, caller, docID); err != nil {
		return err
	}

	if err := s.repository.Delete(ctx, docID); err != nil {
		if defError.Is(err, domain.ErrDocumentNotFound) {
			return errors.NotFound("Document not found", err)
		}
		return errors.Unavailable(err)
	}
	s.cache.IncrementVersion(ctx, versionKey(caller.Subject))

	// the realtime room outlives the document unless we drop it
	s.pool.Submit(func(taskCtx context.Context) error {
		if err := s.rooms.DeleteRoom(taskCtx, docID); err != nil {
			return fmt.Errorf("delete realtime room %s: %w", docID, err)
		}
		s.logger.Debug("realtime room deleted", zap.String("room", docID))
		return nil
	})

	return nil
}

// GetRoomsInfo resolves display names for a roster of rooms. It is not
// ownership-scoped: it backs presence display across users. Missing
// documents are reported as removed, preserving the order of ids.
func (s *DefaultService) GetRoomsInfo(ctx context.Context, ids []string) ([]domain.RoomInfo, error) {
	documents, err := s.repository.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Unavailable(err)
	}

	titles := make(map[string]string, len(documents))
	for _, d := range documents {
		titles[d.ID] = d.Title
	}

	rooms := make([]domain.RoomInfo, 0, len(ids))
	for _, id := range ids {
		name, ok := titles[id]
		if !ok {
			name = RemovedRoomName
		}
		rooms = append(rooms, domain.RoomInfo{ID: id, Name: name})
	}
	return rooms, nil
}

func (s *DefaultService) find(ctx context.Context, docID string) (*domain.Document, error) {
	doc, err := s.repository.FindByID(ctx, docID)
	if err != nil {
		if defError.Is(err, domain.ErrDocumentNotFound) {
			return nil, errors.NotFound("Document not found", err)
		}
		return nil, errors.Unavailable(err)
	}
	return doc, nil
}

func (s *DefaultService) findOwned(ctx context.Context, caller domain.Identity, docID string) (*domain.Document, error) {
	doc, err := s.find(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !doc.IsOwnedBy(caller.Subject) {
		return nil, errors.Unauthorized("Unauthorized", nil)
	}
	return doc, nil
}
