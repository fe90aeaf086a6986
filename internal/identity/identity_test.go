package identity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/db"
	"github.com/zulandar/reputation/internal/record"
	"github.com/zulandar/reputation/internal/store"
)

var owner = record.Identity{0xaa, 0xbb}

func sqlRegistry(t *testing.T) Oracle {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if err := db.SeedAgents(gdb, []config.AgentConfig{{ID: 7, Owner: owner.String()}}); err != nil {
		t.Fatalf("SeedAgents: %v", err)
	}
	return NewSQLRegistry(gdb)
}

func storeRegistry(t *testing.T) Oracle {
	t.Helper()
	s := store.NewMemory()
	if err := RegisterAgent(context.Background(), s, record.Agent{AgentID: 7, Owner: owner}); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	return NewStoreRegistry(s)
}

func TestOracles(t *testing.T) {
	oracles := []struct {
		name string
		new  func(t *testing.T) Oracle
	}{
		{"static", func(t *testing.T) Oracle { return Static{7: owner} }},
		{"sql", sqlRegistry},
		{"store", storeRegistry},
	}

	for _, o := range oracles {
		t.Run(o.name, func(t *testing.T) {
			ctx := context.Background()
			oracle := o.new(t)

			ok, err := oracle.AgentExists(ctx, 7)
			if err != nil || !ok {
				t.Errorf("AgentExists(7) = %v, %v; want true, nil", ok, err)
			}
			ok, err = oracle.AgentExists(ctx, 8)
			if err != nil || ok {
				t.Errorf("AgentExists(8) = %v, %v; want false, nil", ok, err)
			}

			got, err := oracle.AgentOwner(ctx, 7)
			if err != nil {
				t.Fatalf("AgentOwner(7): %v", err)
			}
			if got != owner {
				t.Errorf("AgentOwner(7) = %s, want %s", got, owner)
			}
			if _, err := oracle.AgentOwner(ctx, 8); !errors.Is(err, ErrUnknownAgent) {
				t.Errorf("AgentOwner(8) err = %v, want ErrUnknownAgent", err)
			}
		})
	}
}

func TestRegisterAgent_Replaces(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	newOwner := record.Identity{0x01}

	if err := RegisterAgent(ctx, s, record.Agent{AgentID: 1, Owner: owner}); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if err := RegisterAgent(ctx, s, record.Agent{AgentID: 1, Owner: newOwner}); err != nil {
		t.Fatalf("RegisterAgent again: %v", err)
	}

	got, err := NewStoreRegistry(s).AgentOwner(ctx, 1)
	if err != nil {
		t.Fatalf("AgentOwner: %v", err)
	}
	if got != newOwner {
		t.Errorf("owner = %s, want %s", got, newOwner)
	}
}

func TestSQLRegistry_HighBitAgentID(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	reg := NewSQLRegistry(gdb)

	ok, err := reg.AgentExists(ctx, math.MaxUint64)
	if err != nil || ok {
		t.Fatalf("AgentExists(MaxUint64) before seed = %v, %v; want false, nil", ok, err)
	}
	if _, err := reg.AgentOwner(ctx, math.MaxUint64); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("AgentOwner(MaxUint64) before seed err = %v, want ErrUnknownAgent", err)
	}

	seed := []config.AgentConfig{{ID: math.MaxUint64, Owner: owner.String()}}
	if err := db.SeedAgents(gdb, seed); err != nil {
		t.Fatalf("SeedAgents: %v", err)
	}

	ok, err = reg.AgentExists(ctx, math.MaxUint64)
	if err != nil || !ok {
		t.Errorf("AgentExists(MaxUint64) = %v, %v; want true, nil", ok, err)
	}
	got, err := reg.AgentOwner(ctx, math.MaxUint64)
	if err != nil {
		t.Fatalf("AgentOwner(MaxUint64): %v", err)
	}
	if got != owner {
		t.Errorf("AgentOwner(MaxUint64) = %s, want %s", got, owner)
	}
	ok, err = reg.AgentExists(ctx, math.MaxUint64-1)
	if err != nil || ok {
		t.Errorf("AgentExists(MaxUint64-1) = %v, %v; want false, nil", ok, err)
	}
}
