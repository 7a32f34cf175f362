package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validProgramJSON renders a schema-conforming program named name.
func validProgramJSON(t *testing.T, name string) string {
	t.Helper()
	p := FallbackProgram()
	p.ProgramName = name
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return string(data)
}

func TestJSONStrategies(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		strategy Strategy
		ok       bool
	}{
		{
			name:     "fenced json block",
			text:     "Here is your plan:\n```json\n{\"a\": 1}\n```\nEnjoy!",
			want:     `{"a": 1}`,
			strategy: StrategyFenced,
			ok:       true,
		},
		{
			name:     "untagged fence",
			text:     "```\n{\"a\": 2}\n```",
			want:     `{"a": 2}`,
			strategy: StrategyFenced,
			ok:       true,
		},
		{
			name:     "json fence preferred over earlier untagged fence",
			text:     "```text\nnot json\n```\n```json\n{\"a\": 3}\n```",
			want:     `{"a": 3}`,
			strategy: StrategyFenced,
			ok:       true,
		},
		{
			name:     "trailing comma repaired",
			text:     "```json\n{\"a\": [1, 2,],}\n```",
			want:     `{"a": [1, 2]}`,
			strategy: StrategyRepaired,
			ok:       true,
		},
		{
			name:     "unquoted keys repaired",
			text:     "```json\n{a: 1, b_c: \"x\"}\n```",
			want:     `{"a": 1, "b_c": "x"}`,
			strategy: StrategyRepaired,
			ok:       true,
		},
		{
			name:     "whole body",
			text:     "  {\"a\": 4}\n",
			want:     `{"a": 4}`,
			strategy: StrategyBody,
			ok:       true,
		},
		{
			name:     "object surrounded by prose",
			text:     "Sure! {\"a\": 5} Let me know.",
			want:     `{"a": 5}`,
			strategy: StrategyBody,
			ok:       true,
		},
		{
			name:     "truncated object",
			text:     "```json\n{\"a\": {\"b\": 1",
			strategy: StrategyNone,
		},
		{
			name:     "plain prose",
			text:     "I cannot help with that.",
			strategy: StrategyNone,
		},
		{
			name:     "empty",
			text:     "",
			strategy: StrategyNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, strategy, ok := JSON(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.strategy, strategy)
			if tt.ok {
				assert.JSONEq(t, tt.want, string(raw))
			} else {
				assert.Nil(t, raw)
			}
		})
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare key and trailing comma", `{a: 1,}`, `{"a": 1}`},
		{"trailing comma in array", `[1, 2, ]`, `[1, 2]`},
		{"valid input", `{"a": "b"}`, `{"a": "b"}`},
		{"key-like text in a value", `{"description": "rest, then: stretch", sets: 3}`, `{"description": "rest, then: stretch", "sets": 3}`},
		{"comma before bracket in a value", `{"note": "a, ]", "x": 1,}`, `{"note": "a, ]", "x": 1}`},
		{"escaped quote in a value", `{"cue": "say \"go, now: up\"", reps: 5}`, `{"cue": "say \"go, now: up\"", "reps": 5}`},
		{"unterminated string", `{a: "open, b: 1`, `{"a": "open, b: 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Repair(tt.in))
		})
	}
}

func TestParseProgramValidFencedOutput(t *testing.T) {
	text := "```json\n" + validProgramJSON(t, "P") + "\n```"

	res := ParseProgram(text)

	assert.False(t, res.Fallback)
	assert.NoError(t, res.Err)
	assert.Equal(t, StrategyFenced, res.Strategy)
	assert.Equal(t, "P", res.Program.ProgramName)
	assert.Equal(t, "Workout program generated", res.Message())
}

func TestParseProgramFallbacks(t *testing.T) {
	short := FallbackProgram()
	short.WorkoutPlan.Schedule = short.WorkoutPlan.Schedule[:3]
	shortJSON, err := json.Marshal(short)
	require.NoError(t, err)

	badType := FallbackProgram()
	badType.Exercises[0].ExerciseType = "Juggling"
	badTypeJSON, err := json.Marshal(badType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		text    string
		wantErr error
		detail  string
	}{
		{"truncated json", "```json\n{\"program_name\": \"P\", \"exercises\": [", ErrExtraction, ""},
		{"no json at all", "Sorry, I can't do that.", ErrExtraction, ""},
		{"schedule too short", string(shortJSON), ErrSchemaValidation, "workout_plan.schedule: min=5"},
		{"unknown exercise type", string(badTypeJSON), ErrSchemaValidation, "exercise_type: oneof"},
		{"missing required fields", `{"program_name": "P"}`, ErrSchemaValidation, "program_goal: required"},
		{"wrong field type", `{"program_name": 12}`, ErrSchemaValidation, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseProgram(tt.text)

			assert.True(t, res.Fallback)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			if tt.detail != "" {
				assert.Contains(t, res.Err.Error(), tt.detail)
			}
			assert.Equal(t, FallbackProgram().ProgramName, res.Program.ProgramName)
			assert.True(t, strings.Contains(res.Message(), "default program"))
		})
	}
}

func TestFallbackProgramIsValid(t *testing.T) {
	p := FallbackProgram()
	require.NoError(t, Validate(&p))
	assert.GreaterOrEqual(t, len(p.WorkoutPlan.Schedule), models.MinScheduleDays)

	// Each call is independent.
	p.ProgramName = "changed"
	assert.NotEqual(t, "changed", FallbackProgram().ProgramName)
}

func TestValidateEnumerations(t *testing.T) {
	for _, et := range models.ExerciseTypes {
		p := FallbackProgram()
		p.Exercises[0].ExerciseType = et
		assert.NoError(t, Validate(&p), "exercise type %q", et)
	}
	for _, st := range models.StructureTypes {
		p := FallbackProgram()
		p.WorkoutPlan.StructureType = st
		assert.NoError(t, Validate(&p), fmt.Sprintf("structure type %q", st))
	}
}

func TestValidateNil(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrSchemaValidation)
}

func TestValidateEmptyGearAllowed(t *testing.T) {
	p := FallbackProgram()
	p.RequiredGear = []string{}
	assert.NoError(t, Validate(&p))

	p.RequiredGear = nil
	assert.Error(t, Validate(&p))
}
