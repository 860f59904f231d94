package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/irisdrone/pipewatch/internal/catalog"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/irisdrone/pipewatch/internal/metrics"
	"github.com/sashabaranov/go-openai"
)

var (
	// ErrChatNotConfigured is returned when no OpenAI API key is set.
	ErrChatNotConfigured = errors.New("chat assistant not configured")
	// ErrChatFailed wraps completion failures.
	ErrChatFailed = errors.New("chat completion failed")
)

const inspectorPrompt = `You are a professional inspector specializing in gas and oil pipeline monitoring and leakage detection.
Your role is to analyze provided sensor data and ML health information, reason like an experienced field inspector, and answer operator questions about pipeline condition, leaks, integrity, and safety.

You will be given:
1) Live sensor statistics (5-minute aggregates)
2) ML health status and fault type (last 5 readings)
3) Operator Question (the ONLY source for language detection)

━━━━━━━━━━━━━━━━━━━━━━━━
LANGUAGE DETECTION
━━━━━━━━━━━━━━━━━━━━━━━━
Only the operator's question text determines the response language. Ignore defect ids, location codes, sensor names, units and any other system-generated text.
Never mix languages in a single response.

━━━━━━━━━━━━━━━━━━━━━━━━
GENERAL BEHAVIOR
━━━━━━━━━━━━━━━━━━━━━━━━
- Answer naturally, like a senior pipeline inspector speaking to operators.
- Focus on pipeline monitoring, leak detection, integrity assessment, and operational safety.
- Use only the provided sensor data and ML outputs; do not invent measurements or events.
- If data is insufficient or missing, state that clearly instead of guessing.
- Safety has priority over production or efficiency.

━━━━━━━━━━━━━━━━━━━━━━━━
LEAK-AWARE REASONING
━━━━━━━━━━━━━━━━━━━━━━━━
When relevant, consider pressure drops, unexpected flow changes, vibration anomalies, localized temperature changes, ML fault trends and corrosion signals.

━━━━━━━━━━━━━━━━━━━━━━━━
SEVERITY LANGUAGE
━━━━━━━━━━━━━━━━━━━━━━━━
Use **bold** only for critical states when justified by evidence:
**Normal**, **Warning**, **Critical**, **Leak Detected**, **Immediate Action Required**
Do NOT exaggerate severity. Recommend emergency shutdown only when evidence indicates imminent danger.`

// Completer is satisfied by *openai.Client.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ContextSource supplies live context when a request carries none.
// *Telemetry implements it.
type ContextSource interface {
	SensorContext(ctx context.Context) (string, error)
	MLStatusContext(ctx context.Context) (string, error)
}

// ChatInput is one operator question.
type ChatInput struct {
	Message         string
	SensorContext   string
	MLStatusContext string
	DefectID        string
	Finding         catalog.Finding
}

// ChatService answers operator questions with an OpenAI chat model.
type ChatService struct {
	client      Completer
	model       string
	temperature float32
	catalog     *catalog.Catalog
	context     ContextSource
	log         *slog.Logger
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithCompleter replaces the OpenAI client.
func WithCompleter(c Completer) ChatOption {
	return func(s *ChatService) { s.client = c }
}

// WithContextSource attaches live sensor context.
func WithContextSource(src ContextSource) ChatOption {
	return func(s *ChatService) { s.context = src }
}

// NewChatService returns a service for model. An empty apiKey leaves it
// unconfigured unless WithCompleter is given.
func NewChatService(apiKey, model string, temperature float32, opts ...ChatOption) *ChatService {
	s := &ChatService{
		model:       model,
		temperature: temperature,
		catalog:     catalog.Default(),
		log:         logging.New("chat"),
	}
	if apiKey != "" {
		s.client = openai.NewClient(apiKey)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configured reports whether completions can be requested.
func (s *ChatService) Configured() bool {
	return s.client != nil
}

// Model returns the configured model name.
func (s *ChatService) Model() string {
	return s.model
}

// Briefing returns the knowledge-base analysis for a finding.
func (s *ChatService) Briefing(f catalog.Finding) string {
	return s.catalog.Briefing(f)
}

// Send asks the model and returns its answer.
func (s *ChatService) Send(ctx context.Context, in ChatInput) (string, error) {
	if !s.Configured() {
		metrics.ObserveChat("not_configured")
		return "", ErrChatNotConfigured
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: s.systemMessage(ctx, in)},
			{Role: openai.ChatMessageRoleUser, Content: in.Message},
		},
		Temperature: s.temperature,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.ObserveChat("error")
		s.log.Error("❌ OpenAI API call failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrChatFailed, err)
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveChat("error")
		return "", fmt.Errorf("%w: no choices returned", ErrChatFailed)
	}
	metrics.ObserveChat("ok")
	return resp.Choices[0].Message.Content, nil
}

func (s *ChatService) systemMessage(ctx context.Context, in ChatInput) string {
	sensorCtx, mlCtx := in.SensorContext, in.MLStatusContext
	if s.context != nil {
		if sensorCtx == "" {
			if c, err := s.context.SensorContext(ctx); err != nil {
				s.log.Warn("⚠️ Sensor context unavailable", "error", err)
			} else {
				sensorCtx = c
			}
		}
		if mlCtx == "" {
			if c, err := s.context.MLStatusContext(ctx); err != nil {
				s.log.Warn("⚠️ ML status context unavailable", "error", err)
			} else {
				mlCtx = c
			}
		}
	}

	parts := []string{inspectorPrompt}
	if d := s.defectContext(in); d != "" {
		parts = append(parts, d)
	}
	for _, p := range []string{sensorCtx, mlCtx} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *ChatService) defectContext(in ChatInput) string {
	if in.DefectID == "" || in.Finding.Type == "" {
		return ""
	}
	if prompt := s.catalog.ContextPrompt(in.Finding); prompt != "" {
		return fmt.Sprintf("Defect ID: %s\n%s", in.DefectID, prompt)
	}
	return fmt.Sprintf(`DEFECT REPAIR SPECIALIST MODE
You are a pipeline repair and maintenance specialist. An operator is consulting you about a specific defect.

**Defect Details:**
- ID: %s
- Type: %s
- Location: %s
- Severity: %s

Provide practical repair recommendations: immediate actions, repair procedure, tools and materials, safety precautions, resource estimates, compliance and post-repair testing.`,
		in.DefectID, in.Finding.Type, in.Finding.Location, in.Finding.Severity)
}
