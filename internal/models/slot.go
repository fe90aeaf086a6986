package models

import "time"

// Slot is one entry of the ledger's flat address space. Address is the
// derived key; Kind duplicates its first byte for inspection queries.
type Slot struct {
	Address   []byte `gorm:"primaryKey;type:varbinary(33)"`
	Kind      uint8  `gorm:"index"`
	Value     []byte `gorm:"type:blob;not null"`
	UpdatedAt time.Time
}
