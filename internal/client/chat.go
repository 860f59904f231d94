package client

import (
	"context"
	"net/http"
	"net/url"
)

// ChatRequest is a question about the pipeline, optionally about one defect.
type ChatRequest struct {
	Message         string `json:"message"`
	SensorContext   string `json:"sensor_context,omitempty"`
	MLStatusContext string `json:"ml_status_context,omitempty"`
	DefectID        string `json:"defect_id,omitempty"`
	DefectType      string `json:"defect_type,omitempty"`
	Location        string `json:"location,omitempty"`
	Severity        string `json:"severity,omitempty"`
	ControlSign     string `json:"control_sign,omitempty"`
	DroneSign       string `json:"drone_sign,omitempty"`
}

// ChatResponse is the assistant's answer.
type ChatResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// Briefing is the knowledge-base analysis of one registry entry.
type Briefing struct {
	DefectID    string `json:"defect_id"`
	ActionLevel string `json:"action_level"`
	Message     string `json:"message"`
}

// SendChat forwards a question to the chat service.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, "/api/chat/send", req, &resp, true)
	return resp, err
}

// Briefing fetches the detailed analysis for a registry entry.
func (c *Client) Briefing(ctx context.Context, defectID string) (Briefing, error) {
	var b Briefing
	err := c.do(ctx, http.MethodGet, "/api/chat/defects/"+url.PathEscape(defectID)+"/briefing", nil, &b, true)
	return b, err
}
