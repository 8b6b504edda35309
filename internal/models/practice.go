package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PracticeContext is the per-user state of the session in progress. It is
// handed to each practice transition and the transition returns the next one.
type PracticeContext struct {
	SessionID         int64     `json:"session_id"`
	OperationType     Operation `json:"operation_type"`
	DifficultyID      int64     `json:"difficulty_id"`
	DifficultyValue   int       `json:"difficulty_value"`
	CategoryID        int64     `json:"category_id"`
	Remaining         int       `json:"remaining"`
	CurrentExerciseID int64     `json:"current_exercise_id,omitempty"`
	QuestionStartedAt time.Time `json:"question_started_at"`
}

// HasPendingQuestion reports whether an exercise was shown but not answered
func (c *PracticeContext) HasPendingQuestion() bool {
	return c.CurrentExerciseID != 0
}

// Clone returns a copy so transitions never mutate their input
func (c *PracticeContext) Clone() *PracticeContext {
	next := *c
	return &next
}

// MarshalPracticeContext encodes a context for storage
func MarshalPracticeContext(c *PracticeContext) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode practice context: %w", err)
	}
	return string(data), nil
}

// UnmarshalPracticeContext decodes a stored context
func UnmarshalPracticeContext(payload string) (*PracticeContext, error) {
	var c PracticeContext
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return nil, fmt.Errorf("failed to decode practice context: %w", err)
	}
	return &c, nil
}

// OperationStats is the per-operation breakdown of a session result
type OperationStats struct {
	Operation Operation
	Total     int
	Correct   int
}

// Accuracy returns the percentage for the breakdown row
func (s OperationStats) Accuracy() decimal.Decimal {
	return Percentage(s.Correct, s.Total)
}
