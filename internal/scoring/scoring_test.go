package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectFactor(t *testing.T) {
	tests := []struct {
		name     string
		correct  []int
		provided []int
		want     float64
	}{
		{"empty key, empty answer", nil, nil, 1},
		{"empty key, any answer", nil, []int{0}, 0},
		{"one of two hits", []int{0, 2}, []int{0}, 0.5},
		{"all hits", []int{0, 2}, []int{0, 2}, 1},
		{"single miss clamps to zero", []int{0, 2}, []int{1}, 0},
		{"hit and miss", []int{0, 2}, []int{0, 1}, 0.375},
		{"nothing provided", []int{1}, nil, 0},
		{"four misses cancel a hit", []int{0}, []int{0, 1, 2, 3, 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CorrectFactor(tt.correct, tt.provided), 1e-9)
		})
	}
}

func TestCorrectFactorRange(t *testing.T) {
	correct := []int{1, 3, 4}
	prev := -1.0
	// Adding hits one at a time never decreases the factor.
	for n := 0; n <= len(correct); n++ {
		f := CorrectFactor(correct, correct[:n])
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
		assert.GreaterOrEqual(t, f, prev)
		prev = f
	}
	for _, provided := range [][]int{{0}, {0, 2}, {0, 1, 2, 3, 4, 5}} {
		f := CorrectFactor(correct, provided)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func tenPointQuestion() Key {
	return Key{QuestionID: "q1", Points: 10, Correct: []int{0, 2}}
}

func TestScorifyScenarios(t *testing.T) {
	tests := []struct {
		name   string
		answer Response
		want   float64
	}{
		{"partial hit", Response{QuestionID: "q1", UsedAttempts: 1, Provided: []int{0}}, 5},
		{"miss", Response{QuestionID: "q1", UsedAttempts: 1, Provided: []int{1}}, 0},
		{"unattempted with provided", Response{QuestionID: "q1", UsedAttempts: 0, Provided: []int{0, 2}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Scorify([]Key{tenPointQuestion()}, []Response{tt.answer})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Scores[0], 1e-9)
			assert.InDelta(t, tt.want, res.Total, 1e-9)
			assert.Equal(t, 10.0, res.Grand)
		})
	}
}

func TestScorifyReorderInvariant(t *testing.T) {
	keys := []Key{
		{QuestionID: "a", Points: 2, Correct: []int{1}},
		{QuestionID: "b", Points: 4, Correct: []int{0, 1}},
		{QuestionID: "c", Points: 1, Correct: nil},
	}
	answers := []Response{
		{QuestionID: "a", UsedAttempts: 1, Provided: []int{1}},
		{QuestionID: "b", UsedAttempts: 2, Provided: []int{1}},
		{QuestionID: "c", UsedAttempts: 1, Provided: nil},
	}
	base, err := Scorify(keys, answers)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, base.Total, 1e-9)
	assert.Equal(t, 7.0, base.Grand)

	rk := []Key{keys[2], keys[0], keys[1]}
	ra := []Response{answers[2], answers[0], answers[1]}
	moved, err := Scorify(rk, ra)
	require.NoError(t, err)
	assert.InDelta(t, base.Total, moved.Total, 1e-9)
	assert.Equal(t, base.Grand, moved.Grand)

	// Reordering only one side breaks alignment.
	_, err = Scorify(rk, answers)
	assert.ErrorIs(t, err, ErrOutOfSync)
}

func TestScorifyLengthMismatch(t *testing.T) {
	_, err := Scorify([]Key{tenPointQuestion()}, nil)
	assert.ErrorIs(t, err, ErrOutOfSync)
}
