package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safecommute/safecommute-backend-go/internal/broadcast"
	"github.com/safecommute/safecommute-backend-go/internal/handler"
	"github.com/safecommute/safecommute-backend-go/internal/logger"
	"github.com/safecommute/safecommute-backend-go/internal/middleware"
	"github.com/safecommute/safecommute-backend-go/internal/service"
)

// Deps are the collaborators the HTTP layer is built from
type Deps struct {
	Crowd    *service.CrowdService
	Alerts   *service.AlertService
	Vehicles *service.VehicleService
	Routes   *service.RouteService
	Network  *service.TransitRouteService
	Insights *service.AnalyticsService
	Hub      *broadcast.Hub
	Auth     *middleware.Authenticator
	Limiter  *middleware.RateLimiter // optional
	Log      logger.Logger
	Clock    func() time.Time
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Log), middleware.CORS())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": d.Clock().UTC(),
			"clients":   d.Hub.Clients(),
		})
	})

	crowdH := handler.NewCrowdHandler(d.Crowd)
	alertH := handler.NewAlertHandler(d.Alerts)
	vehicleH := handler.NewVehicleHandler(d.Vehicles)
	optimizationH := handler.NewOptimizationHandler(d.Routes)
	networkH := handler.NewTransitRouteHandler(d.Network)
	analyticsH := handler.NewAnalyticsHandler(d.Insights)
	streamH := handler.NewStreamHandler(d.Hub)

	write := d.Auth.Require()

	v1 := r.Group("/api/v1")
	v1.GET("/stream", streamH.Stream)

	api := v1.Group("")
	if d.Limiter != nil {
		api.Use(d.Limiter.Middleware())
	}
	{
		crowd := api.Group("/crowd")
		{
			crowd.GET("", crowdH.List)
			crowd.POST("", write, crowdH.Ingest)
			crowd.GET("/nearby", crowdH.Nearby)
			crowd.GET("/location/:locationId", crowdH.Location)
			crowd.GET("/stats/overview", crowdH.Stats)
			crowd.GET("/predictions/:locationId", crowdH.Predict)
			crowd.GET("/segments/forecast", crowdH.SegmentForecast)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", alertH.List)
			alerts.POST("", write, alertH.Create)
			alerts.GET("/nearby", alertH.Nearby)
			alerts.GET("/stats/overview", alertH.Stats)
			alerts.POST("/emergency", write, alertH.Emergency)
			alerts.GET("/:alertId", alertH.Get)
			alerts.PATCH("/:alertId/status", write, alertH.UpdateStatus)
		}

		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", vehicleH.List)
			vehicles.POST("", write, vehicleH.Upsert)
			vehicles.GET("/nearby", vehicleH.Nearby)
			vehicles.GET("/stats/overview", vehicleH.Stats)
			vehicles.GET("/:vehicleId", vehicleH.Get)
			vehicles.PATCH("/:vehicleId/location", write, vehicleH.UpdateLocation)
			vehicles.PATCH("/:vehicleId/occupancy", write, vehicleH.UpdateOccupancy)
		}

		routes := api.Group("/routes")
		{
			routes.GET("", networkH.List)
			routes.POST("", write, networkH.Upsert)
			routes.GET("/:routeId", networkH.Get)
			routes.GET("/:routeId/schedule", networkH.Schedule)
			routes.GET("/:routeId/stops", networkH.Stops)
			routes.GET("/:routeId/performance", networkH.Performance)
		}

		analytics := api.Group("/analytics")
		{
			analytics.GET("/overview", analyticsH.Overview)
			analytics.GET("/routes", analyticsH.Routes)
			analytics.GET("/crowd-trends", analyticsH.CrowdTrends)
			analytics.GET("/alert-patterns", analyticsH.AlertPatterns)
			analytics.GET("/predictions", analyticsH.Predictions)
		}

		optimization := api.Group("/optimization")
		{
			optimization.POST("/routes", optimizationH.Routes)
			optimization.GET("/insights", optimizationH.Insights)
			optimization.POST("/crowd-aware", optimizationH.CrowdAware)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})

	return r
}
