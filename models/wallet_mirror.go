// models/wallet_mirror.go
package models

import (
	"time"

	"tournament-factory/escrow"
)

// WalletBalance mirrors the ledger's external balance for one account.
// Table name: wallet_balances
type WalletBalance struct {
	Account   string        `gorm:"primaryKey;type:varchar(128)" json:"account"`
	Balance   escrow.Amount `gorm:"not null" json:"balance"`
	LastSeq   uint64        `gorm:"not null" json:"last_seq"`
	UpdatedAt time.Time     `gorm:"not null" json:"updated_at"`
}
