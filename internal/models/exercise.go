package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation is an arithmetic operation keyword
type Operation string

const (
	OperationAll            Operation = "all"
	OperationAddition       Operation = "addition"
	OperationSubtraction    Operation = "subtraction"
	OperationMultiplication Operation = "multiplication"
	OperationDivision       Operation = "division"
)

// Operations lists the concrete operations in display order
var Operations = []Operation{
	OperationAddition,
	OperationSubtraction,
	OperationMultiplication,
	OperationDivision,
}

// Label returns a human readable name for the operation
func (o Operation) Label() string {
	switch o {
	case OperationAll:
		return "All operations"
	case OperationAddition:
		return "Addition"
	case OperationSubtraction:
		return "Subtraction"
	case OperationMultiplication:
		return "Multiplication"
	case OperationDivision:
		return "Division"
	default:
		return string(o)
	}
}

// IsConcrete reports whether o is one of the four arithmetic operations
func (o Operation) IsConcrete() bool {
	for _, op := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// DifficultyLevel is immutable reference data; Value selects the operand range
type DifficultyLevel struct {
	ID    int64
	Name  string
	Value int
}

// Category groups exercises
type Category struct {
	ID          int64
	Name        string
	Description string
}

// Exercise is a generated question with its exact answer
type Exercise struct {
	ID            int64
	Question      string
	Answer        decimal.Decimal
	OperationType Operation
	DifficultyID  int64
	CategoryID    int64
	CreatedAt     time.Time
}

// ExerciseSession is a bounded run of exercises owned by one user
type ExerciseSession struct {
	ID             int64
	UserID         int64
	DifficultyID   int64
	CategoryID     int64
	OperationType  Operation
	TotalExercises int
	CorrectAnswers int
	StartTime      time.Time
	EndTime        *time.Time
}

// IsActive reports whether the session is still open
func (s *ExerciseSession) IsActive() bool {
	return s.EndTime == nil
}

// Accuracy returns the percentage of correct answers
func (s *ExerciseSession) Accuracy() decimal.Decimal {
	return Percentage(s.CorrectAnswers, s.TotalExercises)
}

// Duration returns the elapsed time of a closed session, or zero while active
func (s *ExerciseSession) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// ExerciseAttempt is one submitted answer. OperationType is joined from the
// exercise when attempts are loaded.
type ExerciseAttempt struct {
	ID            int64
	SessionID     int64
	ExerciseID    int64
	UserAnswer    decimal.Decimal
	IsCorrect     bool
	TimeTaken     int // seconds
	CreatedAt     time.Time
	OperationType Operation
	Question      string
	Answer        decimal.Decimal
}
