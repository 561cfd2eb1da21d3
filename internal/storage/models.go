// Package storage defines database models and repositories
package storage

import (
	"time"

	"gorm.io/gorm"
)

// Character is a persisted conversation persona. The prompt adapter in
// internal/character turns one of these plus a user message into a
// generation request.
type Character struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"unique;not null;index"`
	Persona     string    `json:"persona" gorm:"not null"`
	Greeting    string    `json:"greeting"`
	Temperature float64   `json:"temperature" gorm:"default:0.7"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// APIKey is a caller credential. Only the bcrypt hash is stored; the
// digest column exists for lookup since bcrypt hashes are not
// deterministic.
type APIKey struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	Name       string     `json:"name" gorm:"not null"`
	Digest     string     `json:"-" gorm:"unique;not null;index"`
	KeyHash    string     `json:"-" gorm:"not null"`
	IsActive   bool       `json:"is_active" gorm:"default:true"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RequestLog is one row per dispatched request, recorded best effort.
type RequestLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RequestID string    `json:"request_id" gorm:"index"`
	CallerID  string    `json:"caller_id" gorm:"index"`
	TaskType  string    `json:"task_type"`
	Provider  string    `json:"provider"`
	Attempts  int       `json:"attempts"`
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// BeforeCreate hooks for model initialization
func (c *Character) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	return nil
}

func (r *RequestLog) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}
