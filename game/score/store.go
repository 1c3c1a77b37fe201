package score

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAppID = errors.New("application id cannot be empty")

// Store defines the interface for reading and writing high scores
type Store interface {
	// HighScore returns the stored high score, 0 when none was recorded
	HighScore(appID string) (int, error)

	// Record stores the result if it beats the high score and reports whether it did
	Record(appID string, result Result) (bool, error)
}

// Result is the outcome of one finished run
type Result struct {
	RunID     uuid.UUID `json:"run_id"`
	SessionID string    `json:"session_id,omitempty"`
	Score     int       `json:"score"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Entry is the persisted record for one application identity
type Entry struct {
	HighScore int       `json:"high_score"`
	RunID     uuid.UUID `json:"run_id"`
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	SetAt     time.Time `json:"set_at"`
}

func entryFromResult(result Result) Entry {
	at := result.At
	if at.IsZero() {
		at = time.Now()
	}
	return Entry{
		HighScore: result.Score,
		RunID:     result.RunID,
		SessionID: result.SessionID,
		Reason:    result.Reason,
		SetAt:     at,
	}
}
