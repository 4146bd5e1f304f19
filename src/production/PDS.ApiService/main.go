package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/controllers"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/alarm"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/commands"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/credentials"
	jwt "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/jwt"
	"gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/telemetry"
	authMiddleware "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/middleware"
	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	container "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Container"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
	implementation "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Repository/Implementation"
)

func main() {
	ctr, err := container.NewContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}

	logger := ctr.GetLogger()
	cfg := ctr.GetConfig()
	logger.Info("Starting dispenser API service")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}

	// Repositories
	deviceRepo := implementation.NewPostgresDeviceRepository(db)
	compartmentRepo := implementation.NewPostgresCompartmentRepository(db)
	doseEventRepo := implementation.NewPostgresDoseEventRepository(db)
	weightRepo := implementation.NewPostgresWeightReadingRepository(db)
	commandRepo := implementation.NewPostgresCommandRepository(db)
	archive := ctr.GetTelemetryArchive()

	// Services
	verifier := credentials.NewVerifier(deviceRepo, logger)
	telemetryService := telemetry.NewService(verifier, compartmentRepo, doseEventRepo, weightRepo, archive, cfg.Options, logger)
	dispatcher, err := alarm.NewDispatcher(verifier, compartmentRepo, ctr.GetPushClient(), cfg.Options, logger)
	if err != nil {
		logger.FatalWithError(err, "Failed to create alarm dispatcher")
	}
	commandService := commands.NewService(deviceRepo, commandRepo, verifier, cfg.Options, logger)

	jwtService := jwt.NewService(api_models.Config{
		SecretKey: cfg.Auth.JWTSecretKey,
		Issuer:    cfg.Auth.JWTIssuer,
	})
	authMiddlewareInstance := authMiddleware.NewAuthMiddleware(jwtService, authMiddleware.DefaultConfig())

	// MQTT bridge feeds the same telemetry service and carries commands out
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	ingestor, err := ctr.StartIngestor(runCtx, telemetryService)
	if err != nil {
		logger.FatalWithError(err, "Failed to start MQTT bridge")
	}
	if ingestor != nil {
		commandService.SetPublisher(ingestor)
	}

	healthChecker, err := ctr.GetHealthChecker()
	if err != nil {
		logger.FatalWithError(err, "Failed to create health checker")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(authMiddleware.RequestLogger(logger))
	router.Use(newCORS(cfg.CORS))

	controllers.NewTelemetryController(telemetryService, logger).RegisterRoutes(router)
	controllers.NewAlarmController(dispatcher, logger).RegisterRoutes(router)
	controllers.NewCommandController(commandService, logger, authMiddlewareInstance).RegisterRoutes(router)
	controllers.NewHealthController(healthChecker, logger).RegisterRoutes(router)

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
	// the bridge drains its queue inside ctr.Shutdown before runCtx ends
	if err := ctr.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Container shutdown incomplete")
	}
	stopRun()
}

// newCORS answers preflight requests for the browser app and device webviews
func newCORS(c config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: c.AllowedMethods,
		AllowHeaders: c.AllowedHeaders,
		MaxAge:       time.Duration(c.MaxAge) * time.Second,
	}
	if c.AllowAllOrigins() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = c.AllowedOrigins
	}
	return cors.New(corsConfig)
}
