package entity

import "time"

// BlockStatus is the processing state of a text block.
type BlockStatus string

const (
	BlockStatusPending   BlockStatus = "pending"
	BlockStatusCompleted BlockStatus = "completed"
	BlockStatusFailed    BlockStatus = "failed"
)

// TextBlock is a rectangular text region on a page. The rectangle is stored
// in displayed-image pixels, i.e. after EXIF orientation is applied.
type TextBlock struct {
	ID         string      `json:"id" gorm:"primaryKey"`
	PageID     string      `json:"page_id" gorm:"index;not null"`
	X          int         `json:"x"`
	Y          int         `json:"y"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	OCRText    string      `json:"ocr_text" gorm:"column:ocr_text"`
	Confidence float64     `json:"confidence"`
	Status     BlockStatus `json:"status"`
	// AudioPath references the cached synthesis artifact; alignment blobs
	// live at keys derived from the block text's content UUID.
	AudioPath string    `json:"audio_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName pins the table name.
func (TextBlock) TableName() string { return "text_blocks" }
