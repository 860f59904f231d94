// Package handlers exposes the pipewatch HTTP API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irisdrone/pipewatch/database"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/models"
	"github.com/irisdrone/pipewatch/natsserver"
	"github.com/irisdrone/pipewatch/services"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"
)

// UserRepository finds operator accounts. *database.UserStore implements it.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// ReadingRepository serves the sample datasets. *database.ReadingStore
// implements it.
type ReadingRepository interface {
	services.SampleStore
	ControlSystem(ctx context.Context, limit int) ([]models.ControlSystemReading, error)
	Drone(ctx context.Context, limit int) ([]models.DroneCapture, error)
	ControlSystemSummary(ctx context.Context) (database.ControlSystemSummary, error)
	DroneSummary(ctx context.Context) (database.DroneSummary, error)
}

// BusStats reports event bus statistics. *natsserver.EmbeddedNATS
// implements it.
type BusStats interface {
	GetStats() natsserver.Stats
}

// Deps wires a Handler.
type Deps struct {
	Users    UserRepository
	Monitor  *services.Monitor
	Readings ReadingRepository
	Samples  *services.SampleGenerator
	Chat     *services.ChatService
	Hub      *services.FeedHub
	Bus      BusStats

	JWTSecret         []byte
	AccessTokenExpiry time.Duration
	ChatRatePerMinute int
}

// Handler serves every API route.
type Handler struct {
	Deps
	chatLimiter *rate.Limiter
	log         *slog.Logger
}

// New returns a Handler. Missing optional services turn the matching routes
// into 503s.
func New(d Deps) *Handler {
	if d.AccessTokenExpiry <= 0 {
		d.AccessTokenExpiry = 30 * time.Minute
	}
	if d.ChatRatePerMinute <= 0 {
		d.ChatRatePerMinute = 20
	}
	registerValidators()
	return &Handler{
		Deps:        d,
		chatLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(d.ChatRatePerMinute)), d.ChatRatePerMinute),
		log:         logging.New("api"),
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ws/registry", h.AuthMiddleware(), h.HandleRegistryWebSocket)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/token", h.Login)
		auth.GET("/verify", h.AuthMiddleware(), h.Verify)
		auth.POST("/logout", h.AuthMiddleware(), h.Logout)

		detection := api.Group("/detection", h.AuthMiddleware())
		detection.GET("/leakage-status", h.GetLeakageStatus)
		detection.GET("/overview-stats", h.GetOverviewStats)
		detection.GET("/control-system/summary", h.GetControlSystemSummary)
		detection.GET("/control-system/data", h.GetControlSystemData)
		detection.GET("/drone/summary", h.GetDroneSummary)
		detection.GET("/drone/data", h.GetDroneData)
		detection.GET("/events", h.GetEvents)
		detection.PATCH("/events/:id/status", h.UpdateEventStatus)
		detection.POST("/regenerate-data", h.RegenerateData)
		detection.POST("/simulate-detection", h.SimulateDetection)
		detection.GET("/export/control-system", h.ExportControlSystem)
		detection.GET("/export/drone", h.ExportDrone)

		chat := api.Group("/chat")
		chat.GET("/health", h.ChatHealth)
		chat.POST("/send", h.AuthMiddleware(), h.SendChat)
		chat.GET("/defects/:id/briefing", h.AuthMiddleware(), h.GetBriefing)

		api.GET("/feeds/stats", h.AuthMiddleware(), h.GetFeedHubStats)
	}
}

// Health reports liveness and the monitor's last refresh error.
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.Monitor != nil {
		if err := h.Monitor.LastError(); err != nil {
			resp["lastRefreshError"] = err.Error()
		}
	}
	if res := hostResources(); len(res) > 0 {
		resp["resources"] = res
	}
	c.JSON(http.StatusOK, resp)
}

// hostResources returns current host CPU and memory usage
func hostResources() map[string]interface{} {
	resources := make(map[string]interface{})

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		resources["cpuPercent"] = cpuPercent[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		resources["memoryTotal"] = memInfo.Total
		resources["memoryUsed"] = memInfo.Used
		resources["memoryPercent"] = memInfo.UsedPercent
	}
	return resources
}

// queryInt reads a positive integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + key})
		return 0, false
	}
	return n, true
}
