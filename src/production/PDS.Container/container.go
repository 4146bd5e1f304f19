package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/health"
	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	pdsingestor "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.IngestorService/ingestor"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.PushService/client"
	implementation "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger
	db     *sql.DB
	mongo  *mongo.Client

	// connect is attempted once; a failed archive stays disabled
	mongoErr error

	healthChecker   *health.HealthChecker
	databaseManager *health.DatabaseManager
	pushClient      *client.PushClient
	ingestor        *pdsingestor.Ingestor

	mu sync.RWMutex

	// run in reverse order on shutdown
	cleanupFuncs []func() error
}

// NewContainer loads configuration and the logger
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger.NewLogger(&cfg.Logging),
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the database connection
func (c *Container) GetDatabase() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		db, err := health.ConnectPostgresWithTimeout(c.config, 20*time.Second)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, db.Close)
	}

	return c.db, nil
}

// GetMongo returns the archive client, or nil when the archive is disabled
func (c *Container) GetMongo() (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.Mongo.Enabled() {
		return nil, nil
	}
	if c.mongoErr != nil {
		return nil, c.mongoErr
	}
	if c.mongo == nil {
		client, err := health.ConnectMongoWithTimeout(c.config.Mongo)
		if err != nil {
			c.mongoErr = fmt.Errorf("failed to connect to mongo: %w", err)
			return nil, c.mongoErr
		}
		c.mongo = client
		c.cleanupFuncs = append(c.cleanupFuncs, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
	}

	return c.mongo, nil
}

// GetTelemetryArchive returns the Mongo archive, or a no-op archive when
// Mongo is disabled or unreachable. The archive never blocks startup.
func (c *Container) GetTelemetryArchive() interfaces.TelemetryArchive {
	client, err := c.GetMongo()
	if err != nil {
		c.logger.Logger.Warn().Err(err).Msg("Telemetry archive unavailable, continuing without it")
		return implementation.NopTelemetryArchive{}
	}
	if client == nil {
		c.logger.Info("Telemetry archive disabled")
		return implementation.NopTelemetryArchive{}
	}
	return implementation.NewMongoTelemetryArchive(health.ArchiveCollection(client, c.config.Mongo))
}

// GetPushClient returns the push collaborator client
func (c *Container) GetPushClient() *client.PushClient {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pushClient == nil {
		c.pushClient = client.NewPushClient(c.config.Push)
	}
	return c.pushClient
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker() (*health.HealthChecker, error) {
	c.mu.RLock()
	if c.healthChecker != nil {
		c.mu.RUnlock()
		return c.healthChecker, nil
	}
	c.mu.RUnlock()

	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for health checker: %w", err)
	}
	// archive health is informational, a failed connect was already logged
	mongoClient, _ := c.GetMongo()
	push := c.GetPushClient()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthChecker == nil {
		c.healthChecker = health.NewHealthChecker(db, mongoClient, push)
	}

	return c.healthChecker, nil
}

// GetDatabaseManager returns the database manager
func (c *Container) GetDatabaseManager() (*health.DatabaseManager, error) {
	c.mu.RLock()
	if c.databaseManager != nil {
		c.mu.RUnlock()
		return c.databaseManager, nil
	}
	c.mu.RUnlock()

	db, err := c.GetDatabase()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for database manager: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.databaseManager == nil {
		c.databaseManager = health.NewDatabaseManager(db)
	}

	return c.databaseManager, nil
}

// InitializeDatabase creates the tables when CREATE_TABLES is set
func (c *Container) InitializeDatabase(ctx context.Context) error {
	if !c.config.Server.CreateTables {
		c.logger.Info("Skipping table creation")
		return nil
	}

	dbManager, err := c.GetDatabaseManager()
	if err != nil {
		return fmt.Errorf("failed to get database manager: %w", err)
	}

	if err := dbManager.CreateTables(ctx); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	c.logger.Info("Database initialized successfully")
	return nil
}

// StartIngestor connects the MQTT bridge when MQTT is enabled. It returns
// nil, nil when disabled.
func (c *Container) StartIngestor(ctx context.Context, recorder pdsingestor.TelemetryRecorder) (*pdsingestor.Ingestor, error) {
	if !c.config.MQTT.Enabled {
		c.logger.Info("MQTT bridge disabled")
		return nil, nil
	}

	ing := pdsingestor.New(c.config.MQTT, c.config.GetMQTTBrokerURL(), recorder, c.logger)
	if err := ing.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MQTT bridge: %w", err)
	}

	c.mu.Lock()
	c.ingestor = ing
	c.cleanupFuncs = append(c.cleanupFuncs, func() error {
		ing.Stop()
		return nil
	})
	c.mu.Unlock()

	c.logger.Logger.Info().Str("broker", c.config.GetMQTTBrokerURL()).Strs("topics", ing.Topics()).Msg("MQTT bridge started")
	return ing, nil
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}
