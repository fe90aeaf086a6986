package models

import "time"

// Agent is a row of the identity registry. The ledger only reads it to
// answer existence and ownership questions.
type Agent struct {
	// ID holds the uint64 agent id bit-cast with AgentKey.
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Owner     string `gorm:"size:64;not null"`
	TokenURI  string `gorm:"size:200"`
	CreatedAt time.Time
}

// AgentKey maps an agent id onto the signed column type. database/sql
// refuses uint64 arguments with the high bit set, so ids are stored as
// their two's complement bit pattern.
func AgentKey(id uint64) int64 {
	return int64(id)
}

// AgentID reverses AgentKey.
func (a Agent) AgentID() uint64 {
	return uint64(a.ID)
}
