package entity

import "time"

// Page is a single photographed page of a book. Ordinals are 1-based and
// gap-free within a book; pages are immutable after creation.
type Page struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	BookID     string    `json:"book_id" gorm:"index;not null"`
	PageNumber int       `json:"page_number" gorm:"not null;uniqueIndex:idx_pages_book_ordinal,composite:book_id"`
	ImagePath  string    `json:"image_path" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`

	Blocks []TextBlock `json:"blocks,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName pins the table name.
func (Page) TableName() string { return "pages" }
