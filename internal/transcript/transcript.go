// Package transcript persists command/response exchanges to a JSON file,
// grouped per document session.
package transcript

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	entryTypeSession = "session"
	envPath          = "PAGELENS_TRANSCRIPT"
	defaultFileName  = "transcript.json"
)

// Snapshot is everything recorded for one document session.
type Snapshot struct {
	EntryType  string     `json:"entryType"`
	SessionID  string     `json:"sessionId"`
	Document   string     `json:"document"`
	CapturedAt time.Time  `json:"capturedAt"`
	Exchanges  []Exchange `json:"exchanges,omitempty"`
	LLM        *LLMInfo   `json:"llm,omitempty"`
}

// Exchange is one command and what it produced.
type Exchange struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Intent    string    `json:"intent"`
	Page      int       `json:"page"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
	Results   int       `json:"results,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LLMInfo names the model that answered.
type LLMInfo struct {
	Name string `json:"name,omitempty"`
}

// NewExchange stamps an exchange with a fresh id and the current time.
func NewExchange(command, intent string, page int) Exchange {
	return Exchange{
		ID:        uuid.New().String(),
		Command:   command,
		Intent:    intent,
		Page:      page,
		Timestamp: time.Now().UTC(),
	}
}

// DefaultPath resolves the transcript file: $PAGELENS_TRANSCRIPT, then the
// user config directory.
func DefaultPath() string {
	if env := os.Getenv(envPath); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pagelens", defaultFileName)
}
