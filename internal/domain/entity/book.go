// Package entity defines the domain entities.
package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BookStatus is the ingestion state of a book.
type BookStatus string

const (
	BookStatusProcessing BookStatus = "processing"
	BookStatusCompleted  BookStatus = "completed"
	BookStatusFailed     BookStatus = "failed"
)

// Keyword is a labelled tag extracted during cover analysis.
type Keyword struct {
	Label string `json:"label"`
	Emoji string `json:"emoji,omitempty"`
	Group string `json:"group,omitempty"`
}

// StringList is a []string stored as a JSONB column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}
}

// KeywordList is a []Keyword stored as a JSONB column.
type KeywordList []Keyword

func (l KeywordList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *KeywordList) Scan(src interface{}) error {
	if src == nil {
		*l = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type for KeywordList: %T", src)
	}
}

// Book is a captured publication owned by a single user.
type Book struct {
	ID              string      `json:"id" gorm:"primaryKey"`
	OwnerID         string      `json:"owner_id" gorm:"index;not null"`
	Title           string      `json:"title"`
	Author          string      `json:"author,omitempty"`
	Category        string      `json:"category"`
	Categories      StringList  `json:"categories,omitempty" gorm:"type:jsonb"`
	Keywords        KeywordList `json:"keywords,omitempty" gorm:"type:jsonb"`
	CoverImagePath  string      `json:"cover_image_path,omitempty"`
	Status          BookStatus  `json:"status"`
	FullText        string      `json:"full_text,omitempty"`
	AgentID         string      `json:"agent_id,omitempty"`
	KnowledgeBaseID string      `json:"knowledge_base_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	Pages []Page `json:"pages,omitempty" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName pins the table name.
func (Book) TableName() string { return "books" }

// NewBook creates an empty book in the processing state.
func NewBook(id, ownerID string) *Book {
	return &Book{
		ID:        id,
		OwnerID:   ownerID,
		Title:     "Untitled Book",
		Category:  "General",
		Status:    BookStatusProcessing,
		CreatedAt: time.Now(),
	}
}

// Complete marks ingestion done; full_text is present iff completed.
func (b *Book) Complete(fullText string) {
	b.Status = BookStatusCompleted
	b.FullText = fullText
}

// Fail marks ingestion failed; already-persisted blocks are kept.
func (b *Book) Fail() {
	b.Status = BookStatusFailed
}
