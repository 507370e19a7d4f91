package models

import (
	"time"

	"tournament-factory/escrow"
)

// TournamentSnapshot is the queryable projection of a tournament, rewritten
// after every journaled command that touches it.
type TournamentSnapshot struct {
	ID                   uint64        `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Creator              string        `json:"creator" gorm:"type:varchar(128);index"`
	State                string        `json:"state" gorm:"type:varchar(16);index"`
	EntryFee             escrow.Amount `json:"entry_fee"`
	MaxParticipants      int           `json:"max_participants"`
	Participants         int           `json:"participants"`
	PooledStake          escrow.Amount `json:"pooled_stake"`
	Winner               string        `json:"winner,omitempty"`
	Resolver             string        `json:"resolver" gorm:"type:varchar(64)"`
	RegistrationDeadline time.Time     `json:"registration_deadline" gorm:"index"`
	View                 string        `json:"-" gorm:"type:text"`
	LastSeq              uint64        `json:"last_seq"`

	// Set once the settled snapshot has been uploaded to object storage.
	ArchivedAt *time.Time `json:"archived_at,omitempty" gorm:"index"`
	ArchiveKey string     `json:"archive_key,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// SnapshotColumns are rewritten on upsert; archive bookkeeping is left alone.
var SnapshotColumns = []string{
	"creator",
	"state",
	"entry_fee",
	"max_participants",
	"participants",
	"pooled_stake",
	"winner",
	"resolver",
	"registration_deadline",
	"view",
	"last_seq",
	"updated_at",
}
