package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/libris-app/libris-backend/pkg/enums"
)

// Rental represents a single loan of one book copy to one user.
// At most one active rental may exist per (book, user) pair.
type Rental struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookID     uuid.UUID          `gorm:"column:book_id;type:uuid;not null;index"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Status     enums.RentalStatus `gorm:"column:status;type:text;not null;default:active"`
	RentalDate time.Time          `gorm:"column:rental_date;not null"`
	DueDate    time.Time          `gorm:"column:due_date;not null"`
	ReturnDate *time.Time         `gorm:"column:return_date"`
	Book       *Book              `gorm:"foreignKey:BookID"`
	User       *User              `gorm:"foreignKey:UserID"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
