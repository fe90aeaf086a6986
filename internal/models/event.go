package models

import "time"

// Event is a published ledger notification kept for downstream indexers.
// Seq orders replay; Payload is the CBOR-encoded envelope.
type Event struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement"`
	ID        string `gorm:"size:36;uniqueIndex;not null"`
	Type      string `gorm:"size:32;index"`
	AgentID   int64  `gorm:"index"` // AgentKey of the agent
	Payload   []byte `gorm:"type:blob"`
	CreatedAt time.Time
}
