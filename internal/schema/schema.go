// Package schema defines the wire shapes exchanged with HTTP clients.
package schema

import "strings"

// MaxMessageLength bounds a single chat message in characters.
const MaxMessageLength = 32000

// ChatRequest is the body of POST /chat/stream.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,min=1,max=32000"`
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

// Normalize trims surrounding whitespace so that a blank message fails
// validation instead of being accepted as empty text.
func (r *ChatRequest) Normalize() {
	r.Message = strings.TrimSpace(r.Message)
	r.SessionID = strings.TrimSpace(r.SessionID)
}

// PDFUploadResponse is returned by POST /upload/pdf.
type PDFUploadResponse struct {
	Filename string `json:"filename"`
	Pages    int    `json:"pages"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// ErrorResponse is the body of every 4xx/5xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Status is an advisory lifecycle phase attached to a stream chunk.
type Status string

const (
	StatusReceived   Status = "received"
	StatusSearching  Status = "searching"
	StatusGenerating Status = "generating"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// StreamChunk is one SSE event of a chat stream.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Status  Status `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Terminal reports whether no further chunks may follow c.
func (c StreamChunk) Terminal() bool {
	return c.Done || c.Error != ""
}

// StatusChunk announces a phase without content.
func StatusChunk(s Status) StreamChunk {
	return StreamChunk{Status: s}
}

// ContentChunk carries one unit of answer text.
func ContentChunk(content string) StreamChunk {
	return StreamChunk{Content: content}
}

// DoneChunk is the terminal chunk of a successful stream.
func DoneChunk() StreamChunk {
	return StreamChunk{Done: true, Status: StatusComplete}
}

// ErrorChunk is the terminal chunk of a failed stream.
func ErrorChunk(msg string) StreamChunk {
	if strings.TrimSpace(msg) == "" {
		msg = "stream failed"
	}
	return StreamChunk{Done: true, Status: StatusError, Error: msg}
}
