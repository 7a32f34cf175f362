package service

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/tmc/langchaingo/prompts"
)

const systemPrompt = `You are an experienced strength and conditioning coach. You design training
programs grounded in the reference material you are given.

Reply with a single JSON object inside a ` + "```json" + ` fenced block and nothing else.
The object must have exactly these fields:
  program_name (string), program_goal (string), program_description (string),
  required_gear (array of strings),
  exercises (array of {exercise_name, exercise_type, description, target_muscles[]}),
  workout_plan ({structure_type, schedule[]{day, focus, routines[]{exercise_name, sets, reps, rest, notes}}}).
exercise_type must be one of: %s.
structure_type must be one of: %s.
The schedule must contain at least %d days. Every routine must reference an exercise from exercises.`

var userTemplate = prompts.NewPromptTemplate(`Reference material:
{{range .documents}}
---
{{.}}
{{end}}
---

Design a training program with these requirements:
Goal: {{.goal}}
Experience level: {{.level}}
Training days per week: {{.days}}
Available equipment: {{.equipment}}`, []string{"documents", "goal", "level", "days", "equipment"})

func buildSystemPrompt() string {
	return fmt.Sprintf(systemPrompt,
		strings.Join(models.ExerciseTypes, ", "),
		strings.Join(models.StructureTypes, ", "),
		models.MinScheduleDays)
}

func buildUserPrompt(req models.PlanRequest, docs []models.Chunk) (string, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = strings.TrimSpace(d.Content)
	}

	days := "flexible"
	if req.DaysPerWeek > 0 {
		days = fmt.Sprint(req.DaysPerWeek)
	}

	return userTemplate.Format(map[string]any{
		"documents": texts,
		"goal":      orDefault(req.Goal, "general fitness"),
		"level":     orDefault(req.Level, "beginner"),
		"days":      days,
		"equipment": orDefault(strings.Join(req.Equipment, ", "), "any"),
	})
}

// retrievalQuery turns a request into the text embedded for similarity search.
func retrievalQuery(req models.PlanRequest) string {
	parts := []string{"workout program"}
	if req.Goal != "" {
		parts = append(parts, req.Goal)
	}
	if req.Level != "" {
		parts = append(parts, req.Level+" level")
	}
	if req.DaysPerWeek > 0 {
		parts = append(parts, fmt.Sprintf("%d days per week", req.DaysPerWeek))
	}
	if len(req.Equipment) > 0 {
		parts = append(parts, "using "+strings.Join(req.Equipment, ", "))
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
