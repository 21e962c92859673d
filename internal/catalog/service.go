package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/libris-app/libris-backend/pkg/db"
	"github.com/libris-app/libris-backend/pkg/db/models"
	pkgerrors "github.com/libris-app/libris-backend/pkg/errors"
	"github.com/libris-app/libris-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog administration and lookups.
type Service interface {
	Create(ctx context.Context, input CreateBookInput) (*models.Book, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	List(ctx context.Context, input ListBooksInput) (*BookPage, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateBookInput captures the fields an admin supplies for a new title.
type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          *string
	Genre         *string
	PublishedYear *int
	Description   *string
	CoverURL      *string
	TotalCopies   int
}

// UpdateBookInput carries optional fields; nil means leave unchanged.
type UpdateBookInput struct {
	Title         *string
	Author        *string
	ISBN          *string
	Genre         *string
	PublishedYear *int
	Description   *string
	CoverURL      *string
	TotalCopies   *int
}

// ListBooksInput pairs filters with cursor pagination.
type ListBooksInput struct {
	Filters    ListBooksFilters
	Pagination pagination.Params
}

// BookPage is one page of catalog results plus the cursor for the next page.
type BookPage struct {
	Books      []models.Book
	NextCursor string
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires a catalog service with the provided repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateBookInput) (*models.Book, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if strings.TrimSpace(input.Author) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author is required")
	}
	if input.TotalCopies < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total copies must be at least 1")
	}

	book := &models.Book{
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		ISBN:            input.ISBN,
		Genre:           input.Genre,
		PublishedYear:   input.PublishedYear,
		Description:     input.Description,
		CoverURL:        input.CoverURL,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
	}
	if book.ID == uuid.Nil {
		book.ID = uuid.New()
	}

	if err := s.repo.Create(ctx, book); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a book with this ISBN already exists")
		}
		return nil, err
	}
	return book, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
		}
		return nil, err
	}
	return book, nil
}

func (s *service) List(ctx context.Context, input ListBooksInput) (*BookPage, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Pagination.Limit)
	books, err := s.repo.List(ctx, input.Filters, pagination.LimitWithBuffer(input.Pagination.Limit), cursor)
	if err != nil {
		return nil, err
	}

	page := &BookPage{Books: books}
	if len(books) > limit {
		page.Books = books[:limit]
		last := page.Books[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateBookInput) (*models.Book, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	var updated *models.Book
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		book, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return err
		}

		if input.Title != nil {
			if strings.TrimSpace(*input.Title) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
			}
			book.Title = strings.TrimSpace(*input.Title)
		}
		if input.Author != nil {
			if strings.TrimSpace(*input.Author) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "author cannot be empty")
			}
			book.Author = strings.TrimSpace(*input.Author)
		}
		if input.ISBN != nil {
			book.ISBN = input.ISBN
		}
		if input.Genre != nil {
			book.Genre = input.Genre
		}
		if input.PublishedYear != nil {
			book.PublishedYear = input.PublishedYear
		}
		if input.Description != nil {
			book.Description = input.Description
		}
		if input.CoverURL != nil {
			book.CoverURL = input.CoverURL
		}
		if input.TotalCopies != nil {
			loaned := book.TotalCopies - book.AvailableCopies
			if *input.TotalCopies < 1 {
				return pkgerrors.New(pkgerrors.CodeValidation, "total copies must be at least 1")
			}
			if *input.TotalCopies < loaned {
				return pkgerrors.New(pkgerrors.CodeConflict,
					fmt.Sprintf("cannot shrink total copies below the %d currently on loan", loaned))
			}
			book.TotalCopies = *input.TotalCopies
			book.AvailableCopies = *input.TotalCopies - loaned
		}

		if err := repo.Update(ctx, book); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "a book with this ISBN already exists")
			}
			return err
		}
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "book id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "book not found")
			}
			return err
		}

		open, err := repo.CountOpenLoans(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "book still has copies on loan")
		}

		return repo.Delete(ctx, id)
	})
}
