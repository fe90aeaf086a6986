package db

import (
	"strings"
	"testing"

	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/models"
	"gorm.io/gorm"
)

const testOwner = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			host:     "127.0.0.1",
			port:     3306,
			database: "reputation",
			want:     "root@tcp(127.0.0.1:3306)/reputation?parseTime=true",
		},
		{
			name:     "custom host and port",
			host:     "10.0.0.5",
			port:     3307,
			database: "reputation_staging",
			want:     "root@tcp(10.0.0.5:3307)/reputation_staging?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllModels_Count(t *testing.T) {
	models := AllModels()
	if len(models) != 3 {
		t.Errorf("AllModels() returned %d models, want 3", len(models))
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func TestAutoMigrate_SQLite(t *testing.T) {
	db := openTestDB(t)
	for _, table := range []string{"slots", "agents", "events"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %q missing after AutoMigrate", table)
		}
	}
}

func TestOpenSQLite_SingleConnection(t *testing.T) {
	db := openTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB(): %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

func TestSeedAgents_Upsert(t *testing.T) {
	db := openTestDB(t)

	if err := SeedAgents(db, []config.AgentConfig{{ID: 7, Owner: testOwner, TokenURI: "ipfs://a"}}); err != nil {
		t.Fatalf("SeedAgents: %v", err)
	}
	if err := SeedAgents(db, []config.AgentConfig{{ID: 7, Owner: testOwner, TokenURI: "ipfs://b"}}); err != nil {
		t.Fatalf("SeedAgents again: %v", err)
	}

	var agents []models.Agent
	if err := db.Find(&agents).Error; err != nil {
		t.Fatalf("find agents: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(agents))
	}
	if agents[0].TokenURI != "ipfs://b" {
		t.Errorf("TokenURI = %q, want %q", agents[0].TokenURI, "ipfs://b")
	}
	if agents[0].Owner != testOwner {
		t.Errorf("Owner = %q", agents[0].Owner)
	}
}

func TestSeedAgents_EmptySlice(t *testing.T) {
	// No rows means no DB call.
	if err := SeedAgents(nil, []config.AgentConfig{}); err != nil {
		t.Errorf("SeedAgents(nil, []) = %v, want nil", err)
	}
}

func TestSeedAgents_BadOwner(t *testing.T) {
	err := SeedAgents(nil, []config.AgentConfig{{ID: 1, Owner: "nothex"}})
	if err == nil {
		t.Fatal("expected error for malformed owner")
	}
	if !strings.Contains(err.Error(), "db: seed agent 1") {
		t.Errorf("error = %q", err)
	}
}

func TestConnect_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect("127.0.0.1", 1, "nonexistent")
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestConnectAdmin_Error(t *testing.T) {
	_, err := ConnectAdmin("127.0.0.1", 1)
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}
