package entity

import "time"

// User is an account owning books. Authentication itself is external; the
// row anchors ownership and preferences.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (User) TableName() string { return "users" }

// UserPreferences holds per-owner reading and synthesis settings. TTS
// credentials are passed by value into the synthesis adapter per call and
// never cached process-wide.
type UserPreferences struct {
	UserID       string    `json:"user_id" gorm:"primaryKey"`
	TTSVoiceID   string    `json:"tts_voice_id,omitempty"`
	TTSAPIKey    string    `json:"-" gorm:"column:tts_api_key"`
	ReadingSpeed float64   `json:"reading_speed,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (UserPreferences) TableName() string { return "user_preferences" }

// HasTTSConfig reports whether synthesis can be attempted for this owner.
func (p *UserPreferences) HasTTSConfig() bool {
	return p != nil && p.TTSAPIKey != "" && p.TTSVoiceID != ""
}
