package exercise

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathdrill/internal/models"
)

func TestRangeFor(t *testing.T) {
	tests := []struct {
		difficulty int
		want       Range
	}{
		{1, Range{1, 10}},
		{2, Range{10, 50}},
		{3, Range{50, 100}},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.difficulty), func(t *testing.T) {
			assert.Equal(t, tt.want, RangeFor(tt.difficulty))
		})
	}
}

func TestGenerateOperandsWithinRange(t *testing.T) {
	g := NewSeededGenerator(42)

	for difficulty := 1; difficulty <= 3; difficulty++ {
		r := RangeFor(difficulty)
		for _, op := range models.Operations {
			for i := 0; i < 500; i++ {
				p, err := g.Generate(op, difficulty)
				require.NoError(t, err)
				assert.True(t, r.Contains(p.A), "difficulty %d %s: operand %d outside %v", difficulty, op, p.A, r)
				assert.True(t, r.Contains(p.B), "difficulty %d %s: operand %d outside %v", difficulty, op, p.B, r)
			}
		}
	}
}

func TestGenerateSubtractionNeverNegative(t *testing.T) {
	g := NewSeededGenerator(7)
	for difficulty := 1; difficulty <= 3; difficulty++ {
		for i := 0; i < 1000; i++ {
			p, err := g.Generate(models.OperationSubtraction, difficulty)
			require.NoError(t, err)
			assert.False(t, p.Answer.IsNegative(), "negative answer for %s", p.Question)
		}
	}
}

func TestGenerateDivisionIsExact(t *testing.T) {
	g := NewSeededGenerator(99)
	for difficulty := 1; difficulty <= 3; difficulty++ {
		for i := 0; i < 1000; i++ {
			p, err := g.Generate(models.OperationDivision, difficulty)
			require.NoError(t, err)

			parts := strings.Split(p.Question, " ÷ ")
			require.Len(t, parts, 2, p.Question)
			dividend, err := strconv.Atoi(parts[0])
			require.NoError(t, err)
			divisor, err := strconv.Atoi(parts[1])
			require.NoError(t, err)

			assert.Zero(t, dividend%divisor, "%s is not exact", p.Question)
			assert.True(t, p.Answer.Equal(decimal.NewFromInt(int64(dividend/divisor))), "%s answered %s", p.Question, p.Answer)
		}
	}
}

func TestGenerateAllPicksEveryOperation(t *testing.T) {
	g := NewSeededGenerator(1)
	seen := map[models.Operation]int{}
	for i := 0; i < 400; i++ {
		p, err := g.Generate(models.OperationAll, 1)
		require.NoError(t, err)
		require.True(t, p.Operation.IsConcrete())
		seen[p.Operation]++
	}
	assert.Len(t, seen, 4)
}

func TestGenerateInvalidOperation(t *testing.T) {
	g := NewSeededGenerator(1)
	_, err := g.Generate(models.Operation("modulo"), 1)
	assert.True(t, errors.Is(err, ErrInvalidOperation))

	_, err = Build(models.OperationAll, 1, 2)
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		op       models.Operation
		a, b     int
		question string
		answer   int64
	}{
		{"addition", models.OperationAddition, 3, 4, "3 + 4", 7},
		{"subtraction ordered", models.OperationSubtraction, 9, 2, "9 - 2", 7},
		{"subtraction swapped", models.OperationSubtraction, 2, 9, "9 - 2", 7},
		{"subtraction equal", models.OperationSubtraction, 5, 5, "5 - 5", 0},
		{"multiplication", models.OperationMultiplication, 6, 7, "6 × 7", 42},
		{"division", models.OperationDivision, 7, 3, "21 ÷ 7", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.question, p.Question)
			assert.True(t, p.Answer.Equal(decimal.NewFromInt(tt.answer)), "answer %s", p.Answer)
		})
	}
}

func TestDivisionAnswerComparison(t *testing.T) {
	p, err := Build(models.OperationDivision, 7, 3)
	require.NoError(t, err)

	tests := []struct {
		input string
		want  bool
	}{
		{"3", true},
		{"3.0", true},
		{" 3.00 ", true},
		{"4", false},
		{"2.99", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			given, err := ParseAnswer(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, IsCorrect(p.Answer, given))
		})
	}
}

func TestParseAnswerRejectsGarbage(t *testing.T) {
	inputs := []string{
		"", "   ", "three", "1.234", "1e20", "3,5",
		"1e-99999999", "1e99999999", "0e-2147483648", "3E+2000000000",
		strings.Repeat("9", 64),
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := ParseAnswer(input)
				done <- err
			}()

			select {
			case err := <-done:
				assert.ErrorIs(t, err, ErrInvalidAnswer)
			case <-time.After(time.Second):
				t.Fatalf("ParseAnswer(%q) did not return within a second", input)
			}
		})
	}
}

func TestParseAnswerAcceptsScaledInput(t *testing.T) {
	for input, want := range map[string]string{"3.00": "3", "1.230": "1.23", "2e1": "20", "-4.5": "-4.5"} {
		t.Run(input, func(t *testing.T) {
			got, err := ParseAnswer(input)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(want)), "got %s", got)
		})
	}
}
