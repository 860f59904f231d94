package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irisdrone/pipewatch/internal/catalog"
	"github.com/irisdrone/pipewatch/internal/metrics"
	"github.com/irisdrone/pipewatch/internal/registry"
	"github.com/irisdrone/pipewatch/internal/risk"
	"github.com/irisdrone/pipewatch/services"
)

// ChatRequest is one operator question.
type ChatRequest struct {
	Message         string `json:"message" binding:"required"`
	SensorContext   string `json:"sensor_context"`
	MLStatusContext string `json:"ml_status_context"`
	DefectID        string `json:"defect_id"`
	DefectType      string `json:"defect_type"`
	Location        string `json:"location"`
	Severity        string `json:"severity"`
	ControlSign     string `json:"control_sign"`
	DroneSign       string `json:"drone_sign"`
}

func findingOf(d registry.Defect) catalog.Finding {
	return catalog.Finding{
		Type:        d.DefectType,
		Location:    d.Location,
		Severity:    string(d.RiskLevel),
		ControlSign: d.ControlSystemSign,
		DroneSign:   d.DroneSign,
	}
}

// finding merges the request's defect fields over the registry entry.
func (h *Handler) finding(req ChatRequest) catalog.Finding {
	var f catalog.Finding
	if req.DefectID != "" && h.Monitor != nil {
		if d, ok := h.Monitor.Get(req.DefectID); ok {
			f = findingOf(d)
		}
	}
	if req.DefectType != "" {
		f.Type = risk.DefectType(req.DefectType)
	}
	if req.Location != "" {
		f.Location = req.Location
	}
	if req.Severity != "" {
		f.Severity = req.Severity
	}
	if req.ControlSign != "" {
		f.ControlSign = req.ControlSign
	}
	if req.DroneSign != "" {
		f.DroneSign = req.DroneSign
	}
	return f
}

// SendChat answers an operator question.
func (h *Handler) SendChat(c *gin.Context) {
	if h.Chat == nil || !h.Chat.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chat assistant not configured"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if !h.chatLimiter.Allow() {
		metrics.ObserveChat("rate_limited")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many chat requests, try again shortly"})
		return
	}

	answer, err := h.Chat.Send(c.Request.Context(), services.ChatInput{
		Message:         req.Message,
		SensorContext:   req.SensorContext,
		MLStatusContext: req.MLStatusContext,
		DefectID:        req.DefectID,
		Finding:         h.finding(req),
	})
	switch {
	case errors.Is(err, services.ErrChatNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Chat assistant not configured"})
	case err != nil:
		h.log.Error("❌ Chat request failed", "defect_id", req.DefectID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Chat service error"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"response": answer,
			"model":    h.Chat.Model(),
		})
	}
}

// ChatHealth reports whether the assistant is configured.
func (h *Handler) ChatHealth(c *gin.Context) {
	if h.Chat == nil || !h.Chat.Configured() {
		c.JSON(http.StatusOK, gin.H{"status": "unconfigured", "configured": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"configured": true,
		"model":      h.Chat.Model(),
	})
}

// GetBriefing returns the knowledge-base analysis for a registry entry.
func (h *Handler) GetBriefing(c *gin.Context) {
	d, ok := h.Monitor.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Defect not found"})
		return
	}

	cat := catalog.Default()
	actionLevel := ""
	if entry, ok := cat.Lookup(d.DefectType); ok {
		actionLevel = entry.Knowledge.ActionLevel
	}
	c.JSON(http.StatusOK, gin.H{
		"defect_id":    d.ID,
		"action_level": actionLevel,
		"message":      cat.Briefing(findingOf(d)),
	})
}
