package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				UserID:    1,
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			if got := session.IsExpired(); got != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name    string
		correct int
		total   int
		want    string
	}{
		{"zero total", 0, 0, "0"},
		{"perfect", 5, 5, "100"},
		{"one third", 1, 3, "33.33"},
		{"two thirds", 2, 3, "66.67"},
		{"none correct", 0, 7, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentage(tt.correct, tt.total)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Percentage(%d, %d) = %s, want %s", tt.correct, tt.total, got, tt.want)
			}
			// Recomputing from the same pair gives the same value
			if again := Percentage(tt.correct, tt.total); !again.Equal(got) {
				t.Errorf("Percentage not stable: %s then %s", got, again)
			}
		})
	}
}

func TestProgressApply(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Second)
	session := &ExerciseSession{
		TotalExercises: 4,
		CorrectAnswers: 3,
		StartTime:      start,
		EndTime:        &end,
	}
	attempts := []ExerciseAttempt{
		{OperationType: OperationAddition, IsCorrect: true},
		{OperationType: OperationAddition, IsCorrect: false},
		{OperationType: OperationDivision, IsCorrect: true},
		{OperationType: OperationMultiplication, IsCorrect: true},
	}

	p := NewProgress(7)
	p.Apply(session, attempts, end)

	if p.TotalExercises != 4 || p.CorrectAnswers != 3 {
		t.Errorf("lifetime totals = %d/%d, want 3/4", p.CorrectAnswers, p.TotalExercises)
	}
	if p.Addition != (OperationCounter{Total: 2, Correct: 1}) {
		t.Errorf("addition counter = %+v", p.Addition)
	}
	if p.Division != (OperationCounter{Total: 1, Correct: 1}) {
		t.Errorf("division counter = %+v", p.Division)
	}
	if p.Subtraction != (OperationCounter{}) {
		t.Errorf("subtraction counter = %+v, want zero", p.Subtraction)
	}
	if p.TotalTimeSpent != 95 {
		t.Errorf("TotalTimeSpent = %d, want 95", p.TotalTimeSpent)
	}
	if p.LastActivity == nil || !p.LastActivity.Equal(end) {
		t.Errorf("LastActivity = %v, want %v", p.LastActivity, end)
	}
	if !p.Accuracy().Equal(decimal.NewFromInt(75)) {
		t.Errorf("Accuracy() = %s, want 75", p.Accuracy())
	}
	if !p.OperationAccuracy(OperationAddition).Equal(decimal.NewFromInt(50)) {
		t.Errorf("addition accuracy = %s, want 50", p.OperationAccuracy(OperationAddition))
	}
}

func TestProgressApplyUsesSessionTotals(t *testing.T) {
	end := time.Now()
	session := &ExerciseSession{TotalExercises: 10, CorrectAnswers: 2, StartTime: end, EndTime: &end}
	attempts := []ExerciseAttempt{
		{OperationType: OperationSubtraction, IsCorrect: true},
		{OperationType: OperationSubtraction, IsCorrect: true},
	}

	p := NewProgress(1)
	p.Apply(session, attempts, end)

	if p.TotalExercises != 10 {
		t.Errorf("TotalExercises = %d, want session total 10", p.TotalExercises)
	}
	if p.Subtraction.Total != 2 {
		t.Errorf("Subtraction.Total = %d, want 2", p.Subtraction.Total)
	}
}

func TestExerciseSessionAccuracyZeroTotal(t *testing.T) {
	s := &ExerciseSession{}
	if !s.Accuracy().IsZero() {
		t.Errorf("Accuracy() = %s, want 0", s.Accuracy())
	}
	if !s.IsActive() {
		t.Error("session without end time should be active")
	}
	if s.Duration() != 0 {
		t.Errorf("Duration() = %v, want 0", s.Duration())
	}
}

func TestPracticeContextRoundTrip(t *testing.T) {
	started := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	in := &PracticeContext{
		SessionID:         12,
		OperationType:     OperationAll,
		DifficultyValue:   2,
		Remaining:         3,
		CurrentExerciseID: 44,
		QuestionStartedAt: started,
	}

	payload, err := MarshalPracticeContext(in)
	if err != nil {
		t.Fatalf("MarshalPracticeContext() error = %v", err)
	}
	out, err := UnmarshalPracticeContext(payload)
	if err != nil {
		t.Fatalf("UnmarshalPracticeContext() error = %v", err)
	}
	if out.SessionID != in.SessionID || out.OperationType != in.OperationType ||
		out.DifficultyValue != in.DifficultyValue || out.Remaining != in.Remaining ||
		out.CurrentExerciseID != in.CurrentExerciseID || !out.QuestionStartedAt.Equal(in.QuestionStartedAt) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	clone := in.Clone()
	clone.Remaining = 0
	if in.Remaining != 3 {
		t.Error("Clone() must not share state with the original")
	}
}

func TestOperationHelpers(t *testing.T) {
	if OperationAll.IsConcrete() {
		t.Error("all is not a concrete operation")
	}
	for _, op := range Operations {
		if !op.IsConcrete() {
			t.Errorf("%s should be concrete", op)
		}
	}
	if Operation("modulo").Label() != "modulo" {
		t.Error("unknown operation label should echo the keyword")
	}
}

func TestUserDisplayName(t *testing.T) {
	u := &User{Username: "ada"}
	if u.DisplayName() != "ada" {
		t.Errorf("DisplayName() = %q, want ada", u.DisplayName())
	}
	u.FirstName, u.LastName = "Ada", "Lovelace"
	if u.DisplayName() != "Ada Lovelace" {
		t.Errorf("DisplayName() = %q", u.DisplayName())
	}
}
