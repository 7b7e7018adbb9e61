package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

type ingestService interface {
	Ingest(ctx context.Context, b *domain.Batch) (*domain.BatchResult, error)
}

type liveTracker interface {
	ListLive(tenantID string) []domain.LiveVehiclePosition
}

type routeService interface {
	SessionRoute(ctx context.Context, tenantID string, vehicleLogID int64, simplify bool) (*domain.RouteHistory, error)
	History(ctx context.Context, q *domain.RouteQuery) ([]domain.RouteHistory, error)
	Stats(ctx context.Context, q *domain.StatsQuery) (*domain.Stats, error)
	ActivityDays(ctx context.Context, tenantID, vehicleID string, year, month int) ([]int, error)
}

type GpsHandler struct {
	ingestSvc ingestService
	tracker   liveTracker
	routeSvc  routeService
}

func NewGpsHandler(ingestSvc ingestService, tracker liveTracker, routeSvc routeService) *GpsHandler {
	return &GpsHandler{ingestSvc: ingestSvc, tracker: tracker, routeSvc: routeSvc}
}

func (h *GpsHandler) Register(r *gin.RouterGroup) {
	r.POST("/gps/batch", h.IngestBatch)
	r.GET("/gps/live", h.ListLive)
	r.GET("/gps/routes", h.ListRoutes)
	r.GET("/gps/routes/:vehicleLogId", h.GetRoute)
	r.GET("/gps/stats", h.GetStats)
	r.GET("/gps/activity-days", h.GetActivityDays)
}

func (h *GpsHandler) IngestBatch(c *gin.Context) {
	var batch domain.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	batch.TenantID = tenantID(c)
	batch.DriverID = userID(c)
	if batch.DriverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing " + HeaderUserID + " header"})
		return
	}

	result, err := h.ingestSvc.Ingest(c.Request.Context(), &batch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *GpsHandler) ListLive(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.ListLive(tenantID(c)))
}

func (h *GpsHandler) ListRoutes(c *gin.Context) {
	from, err := requiredTime(c, "from")
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := requiredTime(c, "to")
	if err != nil {
		writeError(c, err)
		return
	}

	routes, err := h.routeSvc.History(c.Request.Context(), &domain.RouteQuery{
		TenantID:  tenantID(c),
		VehicleID: c.Query("vehicleId"),
		From:      from,
		To:        to,
		Simplify:  boolQuery(c, "simplify"),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

func (h *GpsHandler) GetRoute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("vehicleLogId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicleLogId"})
		return
	}

	route, err := h.routeSvc.SessionRoute(c.Request.Context(), tenantID(c), id, boolQuery(c, "simplify"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *GpsHandler) GetStats(c *gin.Context) {
	from, err := optionalTime(c, "from")
	if err != nil {
		writeError(c, err)
		return
	}
	to, err := optionalTime(c, "to")
	if err != nil {
		writeError(c, err)
		return
	}

	stats, err := h.routeSvc.Stats(c.Request.Context(), &domain.StatsQuery{TenantID: tenantID(c), From: from, To: to})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *GpsHandler) GetActivityDays(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year parameter"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month parameter"})
		return
	}

	days, err := h.routeSvc.ActivityDays(c.Request.Context(), tenantID(c), c.Query("vehicleId"), year, month)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days})
}
