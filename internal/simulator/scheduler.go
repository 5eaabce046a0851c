package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/models"
)

// CrowdIngester accepts simulated crowd readings
type CrowdIngester interface {
	Ingest(ctx context.Context, in models.CrowdIngest) (*models.CrowdReading, error)
}

// Fleet is the vehicle surface the scheduler drives
type Fleet interface {
	All(ctx context.Context) ([]models.Vehicle, error)
	Upsert(ctx context.Context, in models.VehicleUpsert) (*models.Vehicle, error)
}

// Network is the route registry seeded at startup
type Network interface {
	List(ctx context.Context, filter models.TransitRouteFilter) (*models.Page[models.TransitRoute], error)
	Upsert(ctx context.Context, in models.TransitRouteUpsert) (*models.TransitRoute, error)
}

// CrowdRetention deletes expired crowd readings
type CrowdRetention interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertRetention deletes alerts resolved long ago
type AlertRetention interface {
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DailyReporter produces the daily analytics report
type DailyReporter interface {
	Run(ctx context.Context, now time.Time) (*models.DailyStats, error)
}

// SchedulerConfig contains configuration for the background jobs
type SchedulerConfig struct {
	Simulate          bool          // drive synthetic crowd and vehicle updates
	VehicleInterval   time.Duration // How often vehicles move
	CrowdInterval     time.Duration // How often crowd readings are produced
	CleanupInterval   time.Duration // How often expired data is removed
	CrowdRetention    time.Duration // Age after which crowd readings are deleted
	ResolvedRetention time.Duration // Age after resolution at which alerts are deleted
	ReportHour        int           // Local hour the daily report runs at
	MaxVehicles       int           // Vehicles moved per tick
}

// DefaultSchedulerConfig returns the production intervals
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Simulate:          true,
		VehicleInterval:   10 * time.Second,
		CrowdInterval:     15 * time.Second,
		CleanupInterval:   time.Hour,
		CrowdRetention:    7 * 24 * time.Hour,
		ResolvedRetention: 24 * time.Hour,
		ReportHour:        6,
		MaxVehicles:       10,
	}
}

// Scheduler runs the simulation ticks, cleanup and the daily report
type Scheduler struct {
	sim       *Simulator
	crowd     CrowdIngester
	fleet     Fleet
	crowdRet  CrowdRetention
	alertRet  AlertRetention
	reporter  DailyReporter
	logger    logger.Logger
	config    SchedulerConfig
	clock     func() time.Time
	isRunning bool
	mu        sync.RWMutex
	cancelFn  context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a new scheduler. reporter may be nil.
func NewScheduler(sim *Simulator, crowd CrowdIngester, fleet Fleet, crowdRet CrowdRetention, alertRet AlertRetention,
	reporter DailyReporter, log logger.Logger, config SchedulerConfig, clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		sim:      sim,
		crowd:    crowd,
		fleet:    fleet,
		crowdRet: crowdRet,
		alertRet: alertRet,
		reporter: reporter,
		logger:   log.With("component", "scheduler"),
		config:   config,
		clock:    clock,
	}
}

// Start begins the background loops
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true

	s.logger.Info("Starting background services",
		"simulate", s.config.Simulate,
		"vehicle_interval", s.config.VehicleInterval,
		"crowd_interval", s.config.CrowdInterval,
		"cleanup_interval", s.config.CleanupInterval,
		"report_hour", s.config.ReportHour)

	if s.config.Simulate {
		s.loop(ctx, s.config.VehicleInterval, s.TickVehicles)
		s.loop(ctx, s.config.CrowdInterval, s.TickCrowd)
	}
	s.loop(ctx, s.config.CleanupInterval, func(ctx context.Context) { s.Cleanup(ctx) })
	if s.reporter != nil {
		s.wg.Add(1)
		go s.reportLoop(ctx)
	}

	return nil
}

// Stop cancels the loops and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping background services")
	s.cancelFn()
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Background services stopped")
}

// IsRunning returns whether the scheduler is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// TickVehicles moves every vehicle in service one step
func (s *Scheduler) TickVehicles(ctx context.Context) {
	vehicles, err := s.fleet.All(ctx)
	if err != nil {
		s.logger.Error("Error updating vehicles", "error", err)
		return
	}

	moved := 0
	for _, v := range vehicles {
		if v.Status == models.VehicleMaintenance || v.Status == models.VehicleIncident {
			continue
		}
		if s.config.MaxVehicles > 0 && moved >= s.config.MaxVehicles {
			break
		}
		if _, err := s.fleet.Upsert(ctx, s.sim.VehicleStep(v)); err != nil {
			s.logger.Error("Error updating vehicle", "vehicleId", v.VehicleID, "error", err)
			continue
		}
		moved++
	}
}

// TickCrowd produces one reading per simulated location
func (s *Scheduler) TickCrowd(ctx context.Context) {
	now := s.clock()
	for _, loc := range Locations {
		if _, err := s.crowd.Ingest(ctx, s.sim.CrowdSample(loc, now)); err != nil {
			s.logger.Error("Error updating crowd data", "location", loc.ID, "error", err)
		}
	}
}

// Cleanup removes expired crowd readings and long-resolved alerts
func (s *Scheduler) Cleanup(ctx context.Context) (crowdDeleted, alertsDeleted int64) {
	now := s.clock()

	crowdDeleted, err := s.crowdRet.DeleteOlderThan(ctx, now.Add(-s.config.CrowdRetention))
	if err != nil {
		s.logger.Error("Crowd cleanup failed", "error", err)
	}
	alertsDeleted, err = s.alertRet.DeleteResolvedBefore(ctx, now.Add(-s.config.ResolvedRetention))
	if err != nil {
		s.logger.Error("Alert cleanup failed", "error", err)
	}

	s.logger.Info("Cleanup completed", "crowd_records", crowdDeleted, "alerts", alertsDeleted)
	return crowdDeleted, alertsDeleted
}

// NextReport returns the first ReportHour:00 strictly after now
func (s *Scheduler) NextReport(now time.Time) time.Time {
	y, m, d := now.Date()
	next := time.Date(y, m, d, s.config.ReportHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) reportLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		wait := s.NextReport(s.clock()).Sub(s.clock())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.reporter.Run(ctx, s.clock()); err != nil {
				s.logger.Error("Error generating daily report", "error", err)
			}
		}
	}
}

// SeedVehicles registers the demo fleet when no vehicles exist yet
func SeedVehicles(ctx context.Context, fleet Fleet, log logger.Logger) error {
	existing, err := fleet.All(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, v := range SeedFleet {
		if _, err := fleet.Upsert(ctx, v); err != nil {
			return fmt.Errorf("seeding %s: %w", v.VehicleID, err)
		}
	}
	log.Info("Seeded demo fleet", "vehicles", len(SeedFleet))
	return nil
}

// SeedRoutes registers SeedNetwork when no routes exist
func SeedRoutes(ctx context.Context, network Network, log logger.Logger) error {
	existing, err := network.List(ctx, models.TransitRouteFilter{Limit: 1})
	if err != nil {
		return err
	}
	if existing.Total > 0 {
		return nil
	}

	for _, r := range SeedNetwork {
		if _, err := network.Upsert(ctx, r); err != nil {
			return fmt.Errorf("seeding %s: %w", r.RouteID, err)
		}
	}
	log.Info("Seeded route network", "routes", len(SeedNetwork))
	return nil
}
