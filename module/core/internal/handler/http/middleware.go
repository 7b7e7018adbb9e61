package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

// Identity headers are set by the upstream gateway after authentication.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"

	ctxTenantID = "tenantID"
	ctxUserID   = "userID"
)

// Identity requires a tenant header and stores tenant and user on the context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID))
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + HeaderTenantID + " header"})
			return
		}
		c.Set(ctxTenantID, tenantID)
		c.Set(ctxUserID, strings.TrimSpace(c.GetHeader(HeaderUserID)))
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(ctxTenantID)
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// writeError maps the domain error taxonomy to HTTP status codes.
func writeError(c *gin.Context, err error) {
	var (
		verr *domain.ValidationError
		nf   *domain.NotFoundError
		nas  *domain.NoActiveSessionError
		serr *domain.TransientStorageError
	)
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": "validation failed", "fields": verr.Fields}
		if len(verr.Indices) > 0 {
			body["indices"] = verr.Indices
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
	case errors.As(err, &nas):
		c.JSON(http.StatusConflict, gin.H{"error": nas.Error()})
	case errors.As(err, &serr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// parseTime accepts RFC 3339 or unix seconds.
func parseTime(v string) (time.Time, error) {
	if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, v)
}

// optionalTime parses query parameter name when present.
func optionalTime(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := parseTime(v)
	if err != nil {
		return nil, domain.NewValidationError(name, "must be RFC 3339 or unix seconds")
	}
	return &t, nil
}

func requiredTime(c *gin.Context, name string) (time.Time, error) {
	t, err := optionalTime(c, name)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, domain.NewValidationError(name, "required")
	}
	return *t, nil
}

func boolQuery(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}
