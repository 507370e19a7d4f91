package models

import (
	"time"
)

// JournalEntry is one accepted state-changing command. Replaying entries in
// Seq order rebuilds the factory state exactly.
type JournalEntry struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Seq       uint64    `gorm:"uniqueIndex;not null" json:"seq"`
	Op        string    `gorm:"type:varchar(32);not null;index" json:"op"`
	Sender    string    `gorm:"type:varchar(128);index" json:"sender"`
	Payload   string    `gorm:"type:text;not null" json:"payload"`
	Outcome   string    `gorm:"type:text" json:"outcome,omitempty"` // error surfaced alongside the state change, if any
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// EventRecord is a lifecycle notification emitted by a journaled command.
type EventRecord struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Seq          uint64    `gorm:"not null;index" json:"seq"`
	Position     int       `gorm:"not null" json:"position"`
	Name         string    `gorm:"type:varchar(64);not null;index" json:"name"`
	TournamentID uint64    `gorm:"index" json:"tournament_id,omitempty"`
	Attributes   string    `gorm:"type:text" json:"attributes"`
	EmittedAt    time.Time `gorm:"not null" json:"emitted_at"`
}
