package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/pkg/db/models"
)

// BookDTO represents the catalog payload returned to clients.
type BookDTO struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            *string   `json:"isbn,omitempty"`
	Genre           *string   `json:"genre,omitempty"`
	PublishedYear   *int      `json:"published_year,omitempty"`
	Description     *string   `json:"description,omitempty"`
	CoverURL        *string   `json:"cover_url,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewBookDTO builds a DTO from the persisted model.
func NewBookDTO(book *models.Book) *BookDTO {
	if book == nil {
		return nil
	}
	return &BookDTO{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.ISBN,
		Genre:           book.Genre,
		PublishedYear:   book.PublishedYear,
		Description:     book.Description,
		CoverURL:        book.CoverURL,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		CreatedAt:       book.CreatedAt,
		UpdatedAt:       book.UpdatedAt,
	}
}

// NewBookDTOs maps a page of models.
func NewBookDTOs(books []models.Book) []BookDTO {
	dtos := make([]BookDTO, 0, len(books))
	for i := range books {
		dtos = append(dtos, *NewBookDTO(&books[i]))
	}
	return dtos
}
