package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/internal/crowd"
	"github.com/safecommute/safecommute-backend-go/internal/database"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/middleware"
	"github.com/safecommute/safecommute-backend-go/internal/models"
	"github.com/safecommute/safecommute-backend-go/internal/repository"
	"github.com/safecommute/safecommute-backend-go/internal/routing"
	"github.com/safecommute/safecommute-backend-go/internal/service"
)

var now = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{Driver: database.DriverSQLite, DSN: ":memory:"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := database.NewMigrationManager(db, logger.Nop()).Run(context.Background()); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	log := logger.Nop()
	hub := broadcast.NewHub(8, log)
	t.Cleanup(hub.Close)

	alerts := service.NewAlertService(repository.NewAlertRepository(db), hub, log, clock)
	crowdRepo := repository.NewCrowdRepository(db)
	crowdSvc := service.NewCrowdService(crowdRepo, crowd.NewAssessor(nil), hub, log, clock, 30*time.Minute)
	vehicles := service.NewVehicleService(repository.NewVehicleRepository(db), hub, log, clock)
	network := service.NewTransitRouteService(repository.NewTransitRouteRepository(db), vehicles, log, clock)
	gen := routing.NewGenerator(routing.DefaultGeneratorConfig(), clock)

	return SetupRouter(Deps{
		Crowd:    crowdSvc,
		Alerts:   alerts,
		Vehicles: vehicles,
		Routes:   service.NewRouteService(alerts, crowdSvc, network, routing.NewOptimizer(gen, clock), log, clock),
		Network:  network,
		Insights: service.NewAnalyticsService(vehicles, crowdRepo, repository.NewAlertRepository(db), log, clock),
		Hub:      hub,
		Auth:     middleware.NewAuthenticator(secret, ""),
		Log:      log,
		Clock:    clock,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func optimizationBody(priority string) map[string]interface{} {
	return map[string]interface{}{
		"origin":      map[string]interface{}{"name": "Central Station", "coordinates": []float64{-74.0060, 40.7128}},
		"destination": map[string]interface{}{"name": "Airport Terminal", "coordinates": []float64{-73.7781, 40.6413}},
		"preferences": map[string]interface{}{"priority": priority, "avoidCrowded": true},
	}
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, "")
	w, _ := do(t, r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestOptimizeLeastCrowdedEndToEnd(t *testing.T) {
	r := setupRouter(t, "")

	w, env := do(t, r, http.MethodPost, "/api/v1/optimization/routes", optimizationBody(models.PriorityLeastCrowded))
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var result models.OptimizationResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Routes) != 3 {
		t.Fatalf("got %d routes, want 3", len(result.Routes))
	}

	wantOrder := []string{models.CrowdLow, models.CrowdMedium, models.CrowdHigh}
	for i, route := range result.Routes {
		if route.CrowdLevel != wantOrder[i] {
			t.Errorf("route %d crowd = %s, want %s", i, route.CrowdLevel, wantOrder[i])
		}
	}
	if !result.Routes[0].Recommended || result.Routes[0].ID != "comfort-route" {
		t.Errorf("first route = %s recommended=%v", result.Routes[0].ID, result.Routes[0].Recommended)
	}

	express := result.Routes[2]
	if !express.Demoted || express.Recommended || express.Reason != "High crowd levels detected" {
		t.Errorf("express route not demoted: %+v", express)
	}
}

func TestOptimizeRejectsBadRequests(t *testing.T) {
	r := setupRouter(t, "")

	same := optimizationBody(models.PriorityFastest)
	same["destination"] = map[string]interface{}{"name": "CENTRAL STATION", "coordinates": []float64{-73.7781, 40.6413}}

	badCoords := optimizationBody(models.PriorityFastest)
	badCoords["origin"] = map[string]interface{}{"coordinates": []float64{-74.0060}}

	tests := []struct {
		name string
		body interface{}
	}{
		{"same place", same},
		{"short coordinates", badCoords},
		{"missing destination", map[string]interface{}{"origin": map[string]interface{}{"coordinates": []float64{0, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, http.MethodPost, "/api/v1/optimization/routes", tt.body)
			if w.Code != http.StatusBadRequest || env.Success {
				t.Errorf("status = %d success = %v", w.Code, env.Success)
			}
		})
	}
}

func TestAlertAdjustsRoutes(t *testing.T) {
	r := setupRouter(t, "")

	w, _ := do(t, r, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"type":        "warning",
		"severity":    "high",
		"title":       "Signal failure",
		"description": "Signal failure at Downtown Hub",
		"location":    map[string]interface{}{"name": "Downtown Hub"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create alert status = %d body = %s", w.Code, w.Body.String())
	}

	baseline := optimizeFastest(t, setupRouter(t, ""))
	adjusted := optimizeFastest(t, r)

	if adjusted.DurationMinutes != baseline.DurationMinutes+routing.DelayPenaltyMinutes {
		t.Errorf("duration = %d, want %d", adjusted.DurationMinutes, baseline.DurationMinutes+routing.DelayPenaltyMinutes)
	}
	if !adjusted.AdjustedForDelays || len(adjusted.Alerts) != 1 {
		t.Errorf("adjusted route = %+v", adjusted)
	}
}

func optimizeFastest(t *testing.T, r http.Handler) models.RouteOption {
	t.Helper()
	_, env := do(t, r, http.MethodPost, "/api/v1/optimization/routes", map[string]interface{}{
		"origin":      map[string]interface{}{"name": "Central Station", "coordinates": []float64{-74.0060, 40.7128}},
		"destination": map[string]interface{}{"name": "Airport Terminal", "coordinates": []float64{-73.7781, 40.6413}},
	})
	var result models.OptimizationResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	for _, route := range result.Routes {
		if route.ID == "fastest-route" {
			return route
		}
	}
	t.Fatal("fastest route missing")
	return models.RouteOption{}
}

func TestCrowdEndpoints(t *testing.T) {
	r := setupRouter(t, "")

	w, env := do(t, r, http.MethodPost, "/api/v1/crowd", map[string]interface{}{
		"locationId":   "central-station-platform-a",
		"locationName": "Central Station Platform A",
		"locationType": "platform",
		"coordinates":  []float64{-74.0060, 40.7128},
		"occupancy":    map[string]int{"current": 285, "capacity": 300},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d body = %s", w.Code, w.Body.String())
	}
	var reading models.CrowdReading
	if err := json.Unmarshal(env.Data, &reading); err != nil {
		t.Fatal(err)
	}
	if reading.Percentage != 95 || reading.Risk.Level != models.RiskCritical {
		t.Errorf("reading = %d%% %s", reading.Percentage, reading.Risk.Level)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/crowd", map[string]interface{}{
		"locationId":   "x",
		"locationName": "X",
		"locationType": "platform",
		"coordinates":  []float64{-74.0060, 40.7128},
		"occupancy":    map[string]int{"current": 10, "capacity": 0},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero capacity status = %d, want 400", w.Code)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/crowd?riskLevel=critical", http.StatusOK},
		{"/api/v1/crowd/nearby?lat=40.7128&lng=-74.0060&radius=500", http.StatusOK},
		{"/api/v1/crowd/nearby?lat=40.7128", http.StatusBadRequest},
		{"/api/v1/crowd/location/central-station-platform-a", http.StatusOK},
		{"/api/v1/crowd/location/unknown", http.StatusNotFound},
		{"/api/v1/crowd/stats/overview", http.StatusOK},
		{"/api/v1/crowd/predictions/central-station-platform-a", http.StatusOK},
		{"/api/v1/crowd/predictions/unknown", http.StatusNotFound},
		{"/api/v1/crowd/segments/forecast?segment=Central,Blue%20Line", http.StatusOK},
		{"/api/v1/crowd/segments/forecast", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w, _ := do(t, r, http.MethodGet, tt.path, nil)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestVehicleEndpoints(t *testing.T) {
	r := setupRouter(t, "")

	w, _ := do(t, r, http.MethodPost, "/api/v1/vehicles", map[string]interface{}{
		"vehicleId":   "BUS-001",
		"type":        "bus",
		"route":       "Route 42",
		"coordinates": []float64{-74.0060, 40.7128},
		"occupancy":   map[string]int{"current": 25, "capacity": 50},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d body = %s", w.Code, w.Body.String())
	}

	w, env := do(t, r, http.MethodPatch, "/api/v1/vehicles/BUS-001/occupancy", map[string]int{"current": 46})
	if w.Code != http.StatusOK {
		t.Fatalf("occupancy status = %d body = %s", w.Code, w.Body.String())
	}
	var v models.Vehicle
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.Status != models.VehicleCrowded {
		t.Errorf("status = %s, want crowded", v.Status)
	}

	w, _ = do(t, r, http.MethodPatch, "/api/v1/vehicles/NOPE/location", map[string]interface{}{"coordinates": []float64{0, 0}})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown vehicle status = %d, want 404", w.Code)
	}
}

func TestWriteRoutesRequireTokenWhenConfigured(t *testing.T) {
	r := setupRouter(t, "secret")

	w, _ := do(t, r, http.MethodPost, "/api/v1/alerts", map[string]interface{}{})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	w, _ = do(t, r, http.MethodGet, "/api/v1/alerts", nil)
	if w.Code != http.StatusOK {
		t.Errorf("read route status = %d, want 200", w.Code)
	}
}

func TestTransitRouteEndpoints(t *testing.T) {
	r := setupRouter(t, "")

	w, env := do(t, r, http.MethodPost, "/api/v1/routes", map[string]interface{}{
		"routeId": "route-42",
		"name":    "Route 42",
		"type":    "bus",
		"stops": []map[string]interface{}{
			{"stopId": "downtown-hub", "name": "Downtown Hub", "coordinates": []float64{-73.9851, 40.7589}, "order": 2, "estimatedTime": 14},
			{"stopId": "central-station", "name": "Central Station", "coordinates": []float64{-74.0060, 40.7128}, "order": 1, "facilities": []string{"wheelchair"}},
		},
		"schedule": map[string]interface{}{
			"weekday": map[string]interface{}{"firstDeparture": "05:30", "lastDeparture": "23:30", "frequency": 12, "peakFrequency": 6},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d body = %s", w.Code, w.Body.String())
	}
	var route models.TransitRoute
	if err := json.Unmarshal(env.Data, &route); err != nil {
		t.Fatal(err)
	}
	if route.Stops[0].StopID != "central-station" || route.Status != models.RouteStatusActive {
		t.Errorf("route = %+v", route)
	}

	w, _ = do(t, r, http.MethodPost, "/api/v1/routes", map[string]interface{}{"routeId": "x", "name": "X", "type": "ferry"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("ferry status = %d, want 400", w.Code)
	}

	w, env = do(t, r, http.MethodGet, "/api/v1/routes/route-42/schedule?stopId=downtown-hub", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule status = %d body = %s", w.Code, w.Body.String())
	}
	var schedule models.RouteSchedule
	if err := json.Unmarshal(env.Data, &schedule); err != nil {
		t.Fatal(err)
	}
	if len(schedule.NextDepartures) != 5 || !schedule.NextDepartures[0].ScheduledTime.Equal(now.Add(14*time.Minute)) {
		t.Errorf("schedule = %+v", schedule.NextDepartures)
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/routes", http.StatusOK},
		{"/api/v1/routes?type=bus&sort=name&order=desc", http.StatusOK},
		{"/api/v1/routes?sort=color", http.StatusBadRequest},
		{"/api/v1/routes/route-42", http.StatusOK},
		{"/api/v1/routes/unknown", http.StatusNotFound},
		{"/api/v1/routes/route-42/schedule", http.StatusOK},
		{"/api/v1/routes/route-42/schedule?stopId=nowhere", http.StatusNotFound},
		{"/api/v1/routes/route-42/stops", http.StatusOK},
		{"/api/v1/routes/route-42/performance?days=30", http.StatusOK},
		{"/api/v1/routes/route-42/performance?days=365", http.StatusBadRequest},
		{"/api/v1/routes/unknown/performance", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w, _ := do(t, r, http.MethodGet, tt.path, nil)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	r := setupRouter(t, "")

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/analytics/overview", http.StatusOK},
		{"/api/v1/analytics/overview?timeframe=7d", http.StatusOK},
		{"/api/v1/analytics/overview?timeframe=forever", http.StatusBadRequest},
		{"/api/v1/analytics/routes", http.StatusOK},
		{"/api/v1/analytics/crowd-trends?hours=48", http.StatusOK},
		{"/api/v1/analytics/crowd-trends?hours=abc", http.StatusBadRequest},
		{"/api/v1/analytics/alert-patterns?days=30", http.StatusOK},
		{"/api/v1/analytics/predictions", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w, _ := do(t, r, http.MethodGet, tt.path, nil)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestTravelInsightsEndpoint(t *testing.T) {
	r := setupRouter(t, "")

	tests := []struct {
		name    string
		path    string
		status  int
		message string
	}{
		{"missing destination", "/api/v1/optimization/insights?origin=40.7128,-74.0060", http.StatusBadRequest, "Origin and destination coordinates required"},
		{"bad format", "/api/v1/optimization/insights?origin=40.7128&destination=40.6413,-73.7781", http.StatusBadRequest, "Invalid coordinate format. Use: lat,lng"},
		{"ok", "/api/v1/optimization/insights?origin=40.7128,-74.0060&destination=40.6413,-73.7781", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, http.MethodGet, tt.path, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.message != "" && env.Message != tt.message {
				t.Errorf("message = %q, want %q", env.Message, tt.message)
			}
		})
	}

	_, env := do(t, r, http.MethodGet, "/api/v1/optimization/insights?origin=40.7128,-74.0060&destination=40.6413,-73.7781", nil)
	var insights models.TravelInsights
	if err := json.Unmarshal(env.Data, &insights); err != nil {
		t.Fatal(err)
	}
	if len(insights.Conditions) != 2 || len(insights.Recommendations) == 0 {
		t.Errorf("insights = %+v", insights)
	}
}

func TestCrowdAwareEndpoint(t *testing.T) {
	r := setupRouter(t, "")

	body := optimizationBody("")
	body["maxCrowdLevel"] = "low"
	w, env := do(t, r, http.MethodPost, "/api/v1/optimization/crowd-aware", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	var result models.CrowdAwareResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.PrimaryRoute.ID != "comfort-route" || !result.WithinLimit || len(result.AlternativeRoutes) != 2 {
		t.Errorf("result = %+v", result)
	}

	body["maxCrowdLevel"] = "extreme"
	w, _ = do(t, r, http.MethodPost, "/api/v1/optimization/crowd-aware", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("extreme limit status = %d, want 400", w.Code)
	}
}
