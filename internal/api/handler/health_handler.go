package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const readinessTimeout = 3 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// MongoCheck pings the server and runs a command against db.
func MongoCheck(db *mongo.Database) Check {
	return func(ctx context.Context) error {
		if err := db.Client().Ping(ctx, nil); err != nil {
			return err
		}
		return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
	}
}

func RedisCheck(rdb *redis.Client) Check {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks map[string]Check
	now    func() time.Time
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{checks: checks, now: time.Now}
}

type livenessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Healthz handles GET /healthz. It never touches a dependency.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Liveness handles GET /health.
//
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  livenessResponse
// @Router       /health [get]
func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, livenessResponse{Status: "ok", Timestamp: h.now().UTC()})
}

// Readiness handles GET /health/ready. Every dependency is probed; any
// failure turns the answer into 503.
//
// @Summary      Readiness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  readinessResponse
// @Failure      503  {object}  readinessResponse
// @Router       /health/ready [get]
func (h *HealthHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]dependencyStatus, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			healthy = false
			continue
		}
		deps[name] = dependencyStatus{Status: "ok"}
	}

	status := "ok"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
