// Package protocol defines the WebSocket wire contract: the closed set of
// diagram kinds, the request and event envelopes, and request validation.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/artifact"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/theme"
)

// Client → server message types.
const (
	TypeDiagramRequest = "diagram_request"
	TypeCancel         = "cancel"
	TypePing           = "ping"
)

// Server → client message types.
const (
	TypeStatusUpdate    = "status_update"
	TypeDiagramResponse = "diagram_response"
	TypeError           = "error"
	TypePong            = "pong"
)

// Status is the progress stage reported in status_update events.
type Status string

const (
	StatusThinking   Status = "thinking"
	StatusGenerating Status = "generating"
	StatusRendering  Status = "rendering"
	StatusSaving     Status = "saving"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// Terminal outcome carried in diagram_response events.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// ClientEnvelope is an incoming frame. Data stays raw until the type is
// known.
type ClientEnvelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RequestData is the payload of a diagram_request frame.
type RequestData struct {
	DiagramType string       `json:"diagram_type"`
	Content     string       `json:"content,omitempty"`
	DataPoints  []DataPoint  `json:"data_points,omitempty"`
	Theme       *theme.Spec  `json:"theme,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// Kind returns the normalized diagram type tag.
func (d *RequestData) Kind() Kind {
	return NormalizeKind(d.DiagramType)
}

// Labels returns the data point labels in request order.
func (d *RequestData) Labels() []string {
	labels := make([]string, len(d.DataPoints))
	for i, p := range d.DataPoints {
		labels[i] = p.Label
	}
	return labels
}

// DataPoint is one ordered element of a diagram request. Value is a
// pointer so a genuine zero survives the trip through JSON.
type DataPoint struct {
	Label       string         `json:"label,omitempty"`
	Value       *float64       `json:"value,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Constraints carries optional size hints. Zero means unconstrained.
type Constraints struct {
	Width     int `json:"width,omitempty"`
	Height    int `json:"height,omitempty"`
	MaxLabels int `json:"max_labels,omitempty"`
}

// ServerEnvelope is an outgoing frame. Seq is the per-request monotonic
// sequence number, starting at 1; pong frames carry none.
type ServerEnvelope struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Seq       int    `json:"seq,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// StatusUpdateData is the payload of a status_update event.
type StatusUpdateData struct {
	Status   Status `json:"status"`
	Message  string `json:"message,omitempty"`
	Progress *int   `json:"progress,omitempty"`
}

// DiagramResponseData is the payload of the terminal diagram_response
// event. Content and URL are both optional: inline-only results omit URL,
// uploaded results may omit Content only when the artifact is binary.
type DiagramResponseData struct {
	Status      string              `json:"status"`
	DiagramType string              `json:"diagram_type"`
	OutputType  artifact.OutputType `json:"output_type,omitempty"`
	Content     string              `json:"content,omitempty"`
	ContentType string              `json:"content_type,omitempty"`
	URL         string              `json:"url,omitempty"`
	Metadata    *ResponseMetadata   `json:"metadata,omitempty"`
}

// ResponseMetadata describes how the artifact was produced.
type ResponseMetadata struct {
	GenerationMethod string          `json:"generation_method"`
	CacheHit         bool            `json:"cache_hit"`
	ThemeApplied     *theme.Resolved `json:"theme_applied,omitempty"`
	GenerationTimeMS int64           `json:"generation_time_ms"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewStatusUpdate builds a status_update envelope.
func NewStatusUpdate(requestID string, seq int, status Status, message string) ServerEnvelope {
	return ServerEnvelope{
		Type:      TypeStatusUpdate,
		RequestID: requestID,
		Seq:       seq,
		Data:      StatusUpdateData{Status: status, Message: message},
	}
}

// NewStatusUpdateWithProgress builds a status_update envelope carrying a
// 0..100 progress value.
func NewStatusUpdateWithProgress(requestID string, seq int, status Status, message string, progress int) ServerEnvelope {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return ServerEnvelope{
		Type:      TypeStatusUpdate,
		RequestID: requestID,
		Seq:       seq,
		Data:      StatusUpdateData{Status: status, Message: message, Progress: &progress},
	}
}

// NewDiagramResponse builds the terminal diagram_response envelope.
func NewDiagramResponse(requestID string, seq int, data DiagramResponseData) ServerEnvelope {
	return ServerEnvelope{
		Type:      TypeDiagramResponse,
		RequestID: requestID,
		Seq:       seq,
		Data:      data,
	}
}

// NewError builds an error envelope. Error events share the request's
// sequence counter so ordering stays observable.
func NewError(requestID string, seq int, code, message, details string) ServerEnvelope {
	return ServerEnvelope{
		Type:      TypeError,
		RequestID: requestID,
		Seq:       seq,
		Data:      ErrorData{Code: code, Message: message, Details: details},
	}
}

// NewPong builds the reply to a client ping.
func NewPong() ServerEnvelope {
	return ServerEnvelope{Type: TypePong}
}

// ParseEnvelope decodes an incoming text frame. It fails on malformed JSON
// or a blank type; unknown-but-present types are left to the caller so the
// connection can answer with an error event instead of closing.
func ParseEnvelope(frame []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, fmt.Errorf("malformed frame: missing type")
	}
	return &env, nil
}

// KnownType reports whether the envelope type is one the server accepts.
func KnownType(t string) bool {
	switch t {
	case TypeDiagramRequest, TypeCancel, TypePing:
		return true
	}
	return false
}

// DecodeRequestData extracts the diagram_request payload.
func DecodeRequestData(env *ClientEnvelope) (*RequestData, error) {
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("diagram_request carries no data")
	}
	var data RequestData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("malformed diagram_request data: %w", err)
	}
	return &data, nil
}
