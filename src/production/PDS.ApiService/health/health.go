package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// BreakerStatus reports the push collaborator circuit breaker state
type BreakerStatus interface {
	GetCircuitBreakerStatus() map[string]interface{}
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	db      *sql.DB
	mongo   *mongo.Client
	breaker BreakerStatus
}

// NewHealthChecker creates a new health checker. mongo and breaker may be nil.
func NewHealthChecker(db *sql.DB, mongoClient *mongo.Client, breaker BreakerStatus) *HealthChecker {
	return &HealthChecker{db: db, mongo: mongoClient, breaker: breaker}
}

// PingPostgres checks if the PostgreSQL connection is healthy
func (h *HealthChecker) PingPostgres(ctx context.Context) error {
	if h.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return h.db.PingContext(ctx)
}

// CheckDatabaseHealth performs a comprehensive database health check
func (h *HealthChecker) CheckDatabaseHealth(ctx context.Context) error {
	if err := h.PingPostgres(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var result int
	if err := h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	return nil
}

// GetHealthStatus returns the current health status. Only Postgres decides
// readiness; the archive and the push breaker are informational.
func (h *HealthChecker) GetHealthStatus(ctx context.Context) (map[string]interface{}, bool) {
	checks := make(map[string]interface{})
	status := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}

	ready := true
	if err := h.CheckDatabaseHealth(ctx); err != nil {
		ready = false
		checks["postgres"] = map[string]interface{}{"status": "error", "error": err.Error()}
	} else {
		checks["postgres"] = map[string]interface{}{"status": "ok"}
	}

	if h.mongo != nil {
		if err := h.mongo.Ping(ctx, readpref.Primary()); err != nil {
			checks["mongo"] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			checks["mongo"] = map[string]interface{}{"status": "ok"}
		}
	}

	if h.breaker != nil {
		checks["push"] = h.breaker.GetCircuitBreakerStatus()
	}

	if ready {
		status["status"] = "ok"
	} else {
		status["status"] = "degraded"
	}
	return status, ready
}

// DatabaseManager handles database operations
type DatabaseManager struct {
	db *sql.DB
}

// NewDatabaseManager creates a new database manager
func NewDatabaseManager(db *sql.DB) *DatabaseManager {
	return &DatabaseManager{db: db}
}

// ConnectPostgresWithTimeout creates a PostgreSQL connection with a timeout context
func ConnectPostgresWithTimeout(cfg *config.Config, timeout time.Duration) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open PostgreSQL connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// CreateTables creates the required tables if they don't exist. Provisioning
// of devices and compartments happens elsewhere; the server only reads them.
func (dm *DatabaseManager) CreateTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	createDevicesTable := `
		CREATE TABLE IF NOT EXISTS devices (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			serial      TEXT NOT NULL UNIQUE,
			secret_hash TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createCompartmentsTable := `
		CREATE TABLE IF NOT EXISTS compartments (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			idx         INTEGER NOT NULL,
			title       TEXT,
			UNIQUE (device_id, idx)
		);
	`

	createDoseEventsTable := `
		CREATE TABLE IF NOT EXISTS dose_events (
			id              TEXT PRIMARY KEY,
			device_id       TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			compartment_id  TEXT NOT NULL REFERENCES compartments(id) ON DELETE CASCADE,
			schedule_id     TEXT,
			scheduled_at    TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL CHECK (status IN ('pending', 'taken', 'missed', 'skipped', 'snoozed')),
			actual_at       TIMESTAMPTZ,
			delta_weight_g  DOUBLE PRECISION,
			source          TEXT NOT NULL DEFAULT 'auto' CHECK (source IN ('auto', 'manual')),
			notes           TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	createWeightReadingsTable := `
		CREATE TABLE IF NOT EXISTS weight_readings (
			id          BIGSERIAL PRIMARY KEY,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			measured_at TIMESTAMPTZ NOT NULL,
			weight_g    DOUBLE PRECISION NOT NULL,
			raw         JSONB NOT NULL DEFAULT '{}'::jsonb
		);
	`

	createCommandsTable := `
		CREATE TABLE IF NOT EXISTS commands (
			id          TEXT PRIMARY KEY,
			device_id   TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			type        TEXT NOT NULL CHECK (type IN ('snooze')),
			payload     JSONB NOT NULL DEFAULT '{}'::jsonb,
			status      TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'consumed')),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			consumed_at TIMESTAMPTZ
		);
	`

	createIndexes := `
		CREATE INDEX IF NOT EXISTS idx_dose_events_device_scheduled ON dose_events (device_id, scheduled_at DESC);
		CREATE INDEX IF NOT EXISTS idx_weight_readings_device_measured ON weight_readings (device_id, measured_at DESC);
		CREATE INDEX IF NOT EXISTS idx_commands_device_pending ON commands (device_id, created_at) WHERE status = 'pending';
	`

	queries := []string{
		createDevicesTable,
		createCompartmentsTable,
		createDoseEventsTable,
		createWeightReadingsTable,
		createCommandsTable,
		createIndexes,
	}

	for _, query := range queries {
		if _, err := dm.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (dm *DatabaseManager) Close() error {
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}
