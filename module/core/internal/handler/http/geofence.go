package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/fleet-gps/module/core/domain"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database"
)

type geofenceService interface {
	Create(ctx context.Context, tenantID string, in *domain.GeofenceInput) (*domain.Geofence, error)
	Update(ctx context.Context, tenantID, id string, in *domain.GeofenceInput) (*domain.Geofence, error)
	Delete(ctx context.Context, tenantID, id string) error
	Get(ctx context.Context, tenantID, id string) (*domain.Geofence, error)
	List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Geofence, error)
	Events(ctx context.Context, q *database.EventQuery) ([]domain.GeofenceEvent, error)
}

type GeofenceHandler struct {
	geofenceSvc geofenceService
}

func NewGeofenceHandler(geofenceSvc geofenceService) *GeofenceHandler {
	return &GeofenceHandler{geofenceSvc: geofenceSvc}
}

func (h *GeofenceHandler) Register(r *gin.RouterGroup) {
	r.GET("/geofences", h.List)
	r.POST("/geofences", h.Create)
	r.GET("/geofences/events", h.ListEvents)
	r.GET("/geofences/:id", h.Get)
	r.PUT("/geofences/:id", h.Update)
	r.DELETE("/geofences/:id", h.Delete)
}

func (h *GeofenceHandler) List(c *gin.Context) {
	list, err := h.geofenceSvc.List(c.Request.Context(), tenantID(c), boolQuery(c, "active"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *GeofenceHandler) Create(c *gin.Context) {
	var in domain.GeofenceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.geofenceSvc.Create(c.Request.Context(), tenantID(c), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *GeofenceHandler) Get(c *gin.Context) {
	g, err := h.geofenceSvc.Get(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GeofenceHandler) Update(c *gin.Context) {
	var in domain.GeofenceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	g, err := h.geofenceSvc.Update(c.Request.Context(), tenantID(c), c.Param("id"), &in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *GeofenceHandler) Delete(c *gin.Context) {
	if err := h.geofenceSvc.Delete(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListEvents filters by vehicleId and a comma separated geofenceIds list.
func (h *GeofenceHandler) ListEvents(c *gin.Context) {
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

	q := &database.EventQuery{
		TenantID:  tenantID(c),
		VehicleID: c.Query("vehicleId"),
		From:      from,
		To:        to,
	}
	if ids := c.Query("geofenceIds"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.GeofenceIDs = append(q.GeofenceIDs, id)
			}
		}
	}

	events, err := h.geofenceSvc.Events(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
