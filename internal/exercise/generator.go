// Package exercise generates arithmetic questions with exact answers.
package exercise

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"mathdrill/internal/models"
)

var (
	ErrInvalidOperation = errors.New("invalid operation type")
	ErrInvalidAnswer    = errors.New("answer must be a number with at most 2 decimal places")
)

// maxAnswer bounds user input to what the answer columns can hold
var maxAnswer = decimal.New(1, 10)

// Input limits checked before any decimal arithmetic. Rounding or comparing
// a value rescales it by its exponent, so "1e-99999999" must never get there.
const (
	maxAnswerLength   = 32
	minAnswerExponent = -10
	maxAnswerExponent = 10
)

// Range is an inclusive operand range
type Range struct {
	Min int
	Max int
}

// Contains reports whether n lies in the range
func (r Range) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// RangeFor maps a difficulty ordinal to its operand range. Anything above 2
// uses the hard range.
func RangeFor(difficulty int) Range {
	switch {
	case difficulty <= 1:
		return Range{Min: 1, Max: 10}
	case difficulty == 2:
		return Range{Min: 10, Max: 50}
	default:
		return Range{Min: 50, Max: 100}
	}
}

// Problem is a generated question. A and B are the drawn operands.
type Problem struct {
	Operation models.Operation
	A         int
	B         int
	Question  string
	Answer    decimal.Decimal
}

// Generator draws random problems. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a randomly seeded generator
func NewGenerator() *Generator {
	return NewSeededGenerator(rand.Uint64())
}

// NewSeededGenerator returns a deterministic generator
func NewSeededGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate draws two operands from the difficulty range and builds a problem
// for op. OperationAll picks one of the four operations uniformly.
func (g *Generator) Generate(op models.Operation, difficulty int) (Problem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if op == models.OperationAll {
		op = models.Operations[g.rng.IntN(len(models.Operations))]
	}
	if !op.IsConcrete() {
		return Problem{}, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	r := RangeFor(difficulty)
	a := r.Min + g.rng.IntN(r.Max-r.Min+1)
	b := r.Min + g.rng.IntN(r.Max-r.Min+1)

	return Build(op, a, b)
}

// Build creates the problem for op from the operands a and b.
// Subtraction orders the operands so the result is never negative; division
// shows (a*b) ÷ a so the quotient b is exact.
func Build(op models.Operation, a, b int) (Problem, error) {
	p := Problem{Operation: op, A: a, B: b}

	switch op {
	case models.OperationAddition:
		p.Question = fmt.Sprintf("%d + %d", a, b)
		p.Answer = decimal.NewFromInt(int64(a + b))
	case models.OperationSubtraction:
		if a < b {
			a, b = b, a
		}
		p.Question = fmt.Sprintf("%d - %d", a, b)
		p.Answer = decimal.NewFromInt(int64(a - b))
	case models.OperationMultiplication:
		p.Question = fmt.Sprintf("%d × %d", a, b)
		p.Answer = decimal.NewFromInt(int64(a * b))
	case models.OperationDivision:
		product := a * b
		p.Question = fmt.Sprintf("%d ÷ %d", product, a)
		p.Answer = decimal.NewFromInt(int64(b))
	default:
		return Problem{}, fmt.Errorf("%w: %q", ErrInvalidOperation, op)
	}

	return p, nil
}

// ParseAnswer parses user input as an exact decimal
func ParseAnswer(input string) (decimal.Decimal, error) {
	input = strings.TrimSpace(input)
	if input == "" || len(input) > maxAnswerLength {
		return decimal.Decimal{}, ErrInvalidAnswer
	}

	d, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidAnswer
	}
	if exp := d.Exponent(); exp < minAnswerExponent || exp > maxAnswerExponent {
		return decimal.Decimal{}, ErrInvalidAnswer
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Decimal{}, ErrInvalidAnswer
	}
	if d.Abs().GreaterThanOrEqual(maxAnswer) {
		return decimal.Decimal{}, ErrInvalidAnswer
	}
	return d, nil
}

// IsCorrect compares answers by exact decimal value, so 3 and 3.0 match
func IsCorrect(expected, given decimal.Decimal) bool {
	return expected.Equal(given)
}
