package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/safecommute/safecommute-backend-go/internal/api"
	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/internal/config"
	"github.com/safecommute/safecommute-backend-go/internal/crowd"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/middleware"
	"github.com/safecommute/safecommute-backend-go/internal/report"
	"github.com/safecommute/safecommute-backend-go/internal/repository"
	"github.com/safecommute/safecommute-backend-go/internal/routing"
	"github.com/safecommute/safecommute-backend-go/internal/service"
	"github.com/safecommute/safecommute-backend-go/internal/simulator"
)

const hubBuffer = 64

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, event stream and background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		return serve(cmd, cfg)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("port", ":8080", "HTTP listen address")
	flags.Bool("simulate", true, "Generate synthetic crowd and vehicle updates")
	flags.Int64("seed", 42, "Random seed for the simulator (0 seeds from the clock)")
	flags.Bool("kafka-enabled", false, "Mirror events to Kafka")
	flags.String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	flags.String("report-bucket", "", "S3 bucket for daily reports (empty disables upload)")

	_ = v.BindPFlag("server.port", flags.Lookup("port"))
	_ = v.BindPFlag("simulator.enabled", flags.Lookup("simulate"))
	_ = v.BindPFlag("simulator.seed", flags.Lookup("seed"))
	_ = v.BindPFlag("kafka.enabled", flags.Lookup("kafka-enabled"))
	_ = v.BindPFlag("kafka.broker_list", flags.Lookup("kafka-broker-list"))
	_ = v.BindPFlag("report.bucket", flags.Lookup("report-bucket"))
}

func serve(cmd *cobra.Command, cfg *config.Config) error {
	log := logger.FromConfig(cfg.Logging)
	gin.SetMode(cfg.Server.Mode)

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cmd.SetContext(ctx)

	db, err := openDatabase(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	crowdRepo := repository.NewCrowdRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	networkRepo := repository.NewTransitRouteRepository(db)

	hub := broadcast.NewHub(hubBuffer, log)
	defer hub.Close()

	var pub broadcast.Publisher = hub
	if cfg.Kafka.Enabled {
		kafka, err := broadcast.NewKafkaPublisher(cfg.Kafka.Brokers(), cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer kafka.Close()
		pub = broadcast.Multi{hub, kafka}
		log.Info("Kafka mirroring enabled", "brokers", cfg.Kafka.Brokers(), "topic", cfg.Kafka.Topic)
	}

	clock := time.Now
	crowdSvc := service.NewCrowdService(crowdRepo, crowd.NewAssessor(crowd.DensityRiskScorer{}), pub, log, clock, cfg.Retention.RecentWindow)
	alertSvc := service.NewAlertService(alertRepo, pub, log, clock)
	vehicleSvc := service.NewVehicleService(vehicleRepo, pub, log, clock)
	networkSvc := service.NewTransitRouteService(networkRepo, vehicleSvc, log, clock)
	analyticsSvc := service.NewAnalyticsService(vehicleSvc, crowdRepo, alertRepo, log, clock)

	generator := routing.NewGenerator(routing.GeneratorConfig{
		AvgSpeedKmh:    cfg.Routing.AvgSpeedKmh,
		AccessMinutes:  cfg.Routing.AccessMinutes,
		MinBaseMinutes: cfg.Routing.MinBaseMinutes,
	}, clock)
	routeSvc := service.NewRouteService(alertSvc, crowdSvc, networkSvc, routing.NewOptimizer(generator, clock), log, clock)

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
		defer limiter.Stop()
	}

	router := api.SetupRouter(api.Deps{
		Crowd:    crowdSvc,
		Alerts:   alertSvc,
		Vehicles: vehicleSvc,
		Routes:   routeSvc,
		Network:  networkSvc,
		Insights: analyticsSvc,
		Hub:      hub,
		Auth:     middleware.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer),
		Limiter:  limiter,
		Log:      log,
		Clock:    clock,
	})

	if cfg.Simulator.SeedVehicles {
		if err := simulator.SeedVehicles(ctx, vehicleSvc, log); err != nil {
			log.Warn("Failed to seed vehicles", "error", err)
		}
	}
	if cfg.Simulator.SeedRoutes {
		if err := simulator.SeedRoutes(ctx, networkSvc, log); err != nil {
			log.Warn("Failed to seed routes", "error", err)
		}
	}

	var uploader report.Uploader
	if cfg.Report.Bucket != "" {
		s3Uploader, err := report.NewS3Uploader(ctx, cfg.Report.Region, cfg.Report.Bucket, cfg.Report.Prefix)
		if err != nil {
			return err
		}
		uploader = s3Uploader
	}
	reporter := report.NewReporter(crowdRepo, alertRepo, vehicleSvc, uploader, log)

	var rng *rand.Rand
	if cfg.Simulator.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Simulator.Seed))
	}
	schedCfg := simulator.DefaultSchedulerConfig()
	schedCfg.Simulate = cfg.Simulator.Enabled
	schedCfg.VehicleInterval = cfg.Simulator.VehicleTick
	schedCfg.CrowdInterval = cfg.Simulator.CrowdTick
	schedCfg.CleanupInterval = cfg.Simulator.CleanupTick
	schedCfg.CrowdRetention = cfg.Retention.CrowdReadings
	schedCfg.ResolvedRetention = cfg.Retention.ResolvedAlerts
	schedCfg.ReportHour = cfg.Simulator.ReportHour

	scheduler := simulator.NewScheduler(simulator.New(rng), crowdSvc, vehicleSvc, crowdRepo, alertRepo, reporter, log, schedCfg, clock)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	if cfg.Server.Heartbeat > 0 {
		go broadcast.Heartbeat(ctx, pub, cfg.Server.Heartbeat, clock)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "addr", cfg.Server.Port, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	// end open event streams so Shutdown does not wait on them
	hub.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		return err
	}
	log.Info("Server stopped")
	return nil
}
