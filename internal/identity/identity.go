// Package identity answers questions about registered agents. The ledger
// consumes it read-only: whether an agent exists and who owns it.
package identity

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/zulandar/reputation/internal/address"
	"github.com/zulandar/reputation/internal/models"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
)

// ErrUnknownAgent is returned by AgentOwner for an unregistered agent.
var ErrUnknownAgent = errors.New("identity: unknown agent")

// Oracle is the identity registry as seen by the ledger.
type Oracle interface {
	AgentExists(ctx context.Context, agentID uint64) (bool, error)
	// AgentOwner returns the owner identity or ErrUnknownAgent.
	AgentOwner(ctx context.Context, agentID uint64) (record.Identity, error)
}

// Static is an in-memory registry, loaded from configuration or built by
// tests. It must not be modified after first use.
type Static map[uint64]record.Identity

func (s Static) AgentExists(_ context.Context, agentID uint64) (bool, error) {
	_, ok := s[agentID]
	return ok, nil
}

func (s Static) AgentOwner(_ context.Context, agentID uint64) (record.Identity, error) {
	owner, ok := s[agentID]
	if !ok {
		return record.Identity{}, fmt.Errorf("%w: %d", ErrUnknownAgent, agentID)
	}
	return owner, nil
}

// SQLRegistry reads the agents table.
type SQLRegistry struct {
	db *gorm.DB
}

func NewSQLRegistry(db *gorm.DB) *SQLRegistry {
	return &SQLRegistry{db: db}
}

func (r *SQLRegistry) AgentExists(ctx context.Context, agentID uint64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Agent{}).Where("id = ?", models.AgentKey(agentID)).Count(&count).Error; err != nil {
		return false, fmt.Errorf("identity: check agent %d: %w", agentID, err)
	}
	return count > 0, nil
}

func (r *SQLRegistry) AgentOwner(ctx context.Context, agentID uint64) (record.Identity, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", models.AgentKey(agentID)).Take(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return record.Identity{}, fmt.Errorf("%w: %d", ErrUnknownAgent, agentID)
		}
		return record.Identity{}, fmt.Errorf("identity: get agent %d: %w", agentID, err)
	}
	owner, err := record.ParseIdentity(agent.Owner)
	if err != nil {
		return record.Identity{}, fmt.Errorf("identity: agent %d owner: %w", agentID, err)
	}
	return owner, nil
}

// StoreRegistry reads agent records from the same substrate as the ledger,
// at address.Agent(id).
type StoreRegistry struct {
	store store.Store
}

func NewStoreRegistry(s store.Store) *StoreRegistry {
	return &StoreRegistry{store: s}
}

func (r *StoreRegistry) AgentExists(ctx context.Context, agentID uint64) (bool, error) {
	_, err := r.AgentOwner(ctx, agentID)
	if errors.Is(err, ErrUnknownAgent) {
		return false, nil
	}
	return err == nil, err
}

func (r *StoreRegistry) AgentOwner(ctx context.Context, agentID uint64) (record.Identity, error) {
	var agent record.Agent
	err := r.store.View(ctx, func(rd store.Reader) error {
		data, err := rd.Get(address.Agent(agentID).Bytes())
		if err != nil {
			return err
		}
		return agent.UnmarshalBinary(data)
	})
	if errors.Is(err, store.ErrNotFound) {
		return record.Identity{}, fmt.Errorf("%w: %d", ErrUnknownAgent, agentID)
	}
	if err != nil {
		return record.Identity{}, fmt.Errorf("identity: read agent %d: %w", agentID, err)
	}
	return agent.Owner, nil
}

// RegisterAgent writes or replaces an agent record in s. It stands in for
// the external identity registry on development and test substrates.
func RegisterAgent(ctx context.Context, s store.Store, agent record.Agent) error {
	data, err := agent.MarshalBinary()
	if err != nil {
		return fmt.Errorf("identity: register agent %d: %w", agent.AgentID, err)
	}
	err = store.Retry(ctx, s, 0, func(txn store.Txn) error {
		return txn.Put(address.Agent(agent.AgentID).Bytes(), data)
	})
	if err != nil {
		return fmt.Errorf("identity: register agent %d: %w", agent.AgentID, err)
	}
	return nil
}
