package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/pkg/enums"
)

// Reservation represents a reader's request to pick up a book.
// At most one pending or approved reservation may exist per (book, user) pair.
type Reservation struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID              uuid.UUID               `gorm:"column:book_id;type:uuid;not null;index"`
	UserID              uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	Status              enums.ReservationStatus `gorm:"column:status;type:text;not null;default:pending"`
	ReservationDate     time.Time               `gorm:"column:reservation_date;not null"`
	PreferredPickupDate time.Time               `gorm:"column:preferred_pickup_date;not null"`
	ProcessedBy         *uuid.UUID              `gorm:"column:processed_by;type:uuid"`
	ProcessedDate       *time.Time              `gorm:"column:processed_date"`
	AdminNotes          *string                 `gorm:"column:admin_notes"`
	ExpiresAt           *time.Time              `gorm:"column:expires_at"`
	Book                *Book                   `gorm:"foreignKey:BookID"`
	User                *User                   `gorm:"foreignKey:UserID"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
