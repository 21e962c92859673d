package models

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a catalog title together with its copy counts.
// AvailableCopies is only mutated inside loan and reservation transactions
// and must always sit within [0, TotalCopies].
type Book struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string    `gorm:"column:title;not null"`
	Author          string    `gorm:"column:author;not null"`
	ISBN            *string   `gorm:"column:isbn;uniqueIndex"`
	Genre           *string   `gorm:"column:genre"`
	PublishedYear   *int      `gorm:"column:published_year"`
	Description     *string   `gorm:"column:description"`
	CoverURL        *string   `gorm:"column:cover_url"`
	TotalCopies     int       `gorm:"column:total_copies;not null;default:1"`
	AvailableCopies int       `gorm:"column:available_copies;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
