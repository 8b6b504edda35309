package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percentage returns round(100*correct/total, 2), or 0 when total is 0
func Percentage(correct, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(correct)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

// OperationCounter holds the totals for one operation
type OperationCounter struct {
	Total   int
	Correct int
}

// Accuracy returns the counter's percentage
func (c OperationCounter) Accuracy() decimal.Decimal {
	return Percentage(c.Correct, c.Total)
}

// Progress is the per-user lifetime aggregate
type Progress struct {
	UserID         int64
	TotalExercises int
	CorrectAnswers int
	TotalTimeSpent int64 // seconds
	LastActivity   *time.Time

	Addition       OperationCounter
	Subtraction    OperationCounter
	Multiplication OperationCounter
	Division       OperationCounter
}

// NewProgress returns an empty aggregate for a freshly provisioned user
func NewProgress(userID int64) *Progress {
	return &Progress{UserID: userID}
}

// Accuracy returns the lifetime percentage
func (p *Progress) Accuracy() decimal.Decimal {
	return Percentage(p.CorrectAnswers, p.TotalExercises)
}

// Counter returns the counter for op, or nil for non-concrete operations
func (p *Progress) Counter(op Operation) *OperationCounter {
	switch op {
	case OperationAddition:
		return &p.Addition
	case OperationSubtraction:
		return &p.Subtraction
	case OperationMultiplication:
		return &p.Multiplication
	case OperationDivision:
		return &p.Division
	default:
		return nil
	}
}

// OperationAccuracy returns the percentage for one operation
func (p *Progress) OperationAccuracy(op Operation) decimal.Decimal {
	c := p.Counter(op)
	if c == nil {
		return decimal.Zero
	}
	return c.Accuracy()
}

// Apply folds a closed session into the aggregate. Per-operation counters are
// classified from the attempts; lifetime totals come from the session
// summary, so they may differ from the attempt count.
func (p *Progress) Apply(session *ExerciseSession, attempts []ExerciseAttempt, now time.Time) {
	for _, attempt := range attempts {
		c := p.Counter(attempt.OperationType)
		if c == nil {
			continue
		}
		c.Total++
		if attempt.IsCorrect {
			c.Correct++
		}
	}

	p.TotalExercises += session.TotalExercises
	p.CorrectAnswers += session.CorrectAnswers
	if d := session.Duration(); d > 0 {
		p.TotalTimeSpent += int64(d / time.Second)
	}
	p.LastActivity = &now
}
