package models

import "time"

// Exercise categories accepted in exercise_type.
var ExerciseTypes = []string{
	"Basics", "Strength", "Hypertrophy", "Cardio", "Conditioning",
	"Mobility", "Flexibility", "Core", "Plyometrics", "Accessory",
}

// Program structures accepted in workout_plan.structure_type.
var StructureTypes = []string{
	"Weekly Split", "Full Body", "Upper/Lower", "Push/Pull/Legs", "Circuit",
}

// MinScheduleDays is the minimum length of workout_plan.schedule.
const MinScheduleDays = 5

// WorkoutProgram is the structured training program produced by generation.
// Field names follow the JSON contract the model is prompted with.
type WorkoutProgram struct {
	ProgramName        string      `json:"program_name" validate:"required"`
	ProgramGoal        string      `json:"program_goal" validate:"required"`
	ProgramDescription string      `json:"program_description" validate:"required"`
	RequiredGear       []string    `json:"required_gear" validate:"required"`
	Exercises          []Exercise  `json:"exercises" validate:"required,min=1,dive"`
	WorkoutPlan        WorkoutPlan `json:"workout_plan" validate:"required"`
}

// Exercise is one movement referenced by the schedule.
type Exercise struct {
	ExerciseName  string   `json:"exercise_name" validate:"required"`
	ExerciseType  string   `json:"exercise_type" validate:"required,oneof=Basics Strength Hypertrophy Cardio Conditioning Mobility Flexibility Core Plyometrics Accessory"`
	Description   string   `json:"description" validate:"required"`
	TargetMuscles []string `json:"target_muscles" validate:"required"`
}

// WorkoutPlan lays the exercises out over a schedule.
type WorkoutPlan struct {
	StructureType string        `json:"structure_type" validate:"required,oneof='Weekly Split' 'Full Body' 'Upper/Lower' 'Push/Pull/Legs' 'Circuit'"`
	Schedule      []ScheduleDay `json:"schedule" validate:"required,min=5,dive"`
}

// ScheduleDay is one training (or rest) day.
type ScheduleDay struct {
	Day      string    `json:"day" validate:"required"`
	Focus    string    `json:"focus" validate:"required"`
	Routines []Routine `json:"routines" validate:"required,dive"`
}

// Routine prescribes an exercise for a day.
type Routine struct {
	ExerciseName string `json:"exercise_name" validate:"required"`
	Sets         int    `json:"sets,omitempty" validate:"gte=0"`
	Reps         string `json:"reps,omitempty"`
	Rest         string `json:"rest,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// PlanRecord is a persisted generation result.
type PlanRecord struct {
	ID        string         `json:"id"`
	JobID     string         `json:"jobId"`
	Program   WorkoutProgram `json:"program"`
	Fallback  bool           `json:"fallback"`
	FileIDs   []string       `json:"fileIds"`
	CreatedAt time.Time      `json:"createdAt"`
}
