package document

import (
	"context"
	"errors"
	"strings"

	"collaborative-docs/internal/domain"

	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, document *domain.Document) error
	FindByID(ctx context.Context, id string) (*domain.Document, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.Document, error)
	ListByOwner(ctx context.Context, ownerID, search string, page, pageSize int) ([]domain.Document, DocumentsMeta, error)
	UpdateTitle(ctx context.Context, id string, title string) error
	Delete(ctx context.Context, id string) error
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new document repository
func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

type DocumentsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, document *domain.Document) error {
	return r.db.WithContext(ctx).Create(document).Error
}

func (r *DocumentRepositoryImpl) FindByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByIDs returns the documents that exist among ids, in no particular order.
func (r *DocumentRepositoryImpl) FindByIDs(ctx context.Context, ids []string) ([]domain.Document, error) {
	var documents []domain.Document
	if len(ids) == 0 {
		return documents, nil
	}
	err := r.db.WithContext(ctx).
		Select("id", "title").
		Where("id IN ?", ids).
		Find(&documents).Error
	return documents, err
}

func (r *DocumentRepositoryImpl) ListByOwner(ctx context.Context, ownerID, search string, page, pageSize int) ([]domain.Document, DocumentsMeta, error) {
	var documents []domain.Document
	var totalRecords int64

	search = strings.TrimSpace(search)
	scoped := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&domain.Document{}).Where("owner_id = ?", ownerID)
		if search != "" {
			q = q.Where("title ILIKE ?", "%"+escapeLike(search)+"%")
		}
		return q
	}

	// Count total records
	if err := scoped().Count(&totalRecords).Error; err != nil {
		return documents, DocumentsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := scoped().
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&documents).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return documents, DocumentsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}

// UpdateTitle only ever touches title and updated_at; ownership columns are
// create-only on the model.
func (r *DocumentRepositoryImpl) UpdateTitle(ctx context.Context, id string, title string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Update("title", title)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepositoryImpl) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Document{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
