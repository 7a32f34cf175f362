package extract

import "github.com/raphaelgruber/fitplan/internal/models"

// FallbackProgram returns the built-in beginner program. Each call returns
// a fresh value that callers may modify.
func FallbackProgram() models.WorkoutProgram {
	return models.WorkoutProgram{
		ProgramName:        "Foundational Strength Program",
		ProgramGoal:        "Build general strength and conditioning",
		ProgramDescription: "A balanced five-day routine covering the main movement patterns with conservative volume. Use it as a starting point until a personalised program can be generated.",
		RequiredGear:       []string{"Dumbbells", "Exercise mat"},
		Exercises: []models.Exercise{
			{
				ExerciseName:  "Goblet Squat",
				ExerciseType:  "Basics",
				Description:   "Hold a dumbbell at chest height and squat to a comfortable depth.",
				TargetMuscles: []string{"Quadriceps", "Glutes"},
			},
			{
				ExerciseName:  "Push-Up",
				ExerciseType:  "Basics",
				Description:   "Lower the chest to the floor with a rigid torso and press back up.",
				TargetMuscles: []string{"Chest", "Triceps", "Shoulders"},
			},
			{
				ExerciseName:  "Dumbbell Row",
				ExerciseType:  "Strength",
				Description:   "Brace on a bench and row the dumbbell towards the hip.",
				TargetMuscles: []string{"Lats", "Upper Back", "Biceps"},
			},
			{
				ExerciseName:  "Romanian Deadlift",
				ExerciseType:  "Strength",
				Description:   "Hinge at the hips with soft knees, keeping the dumbbells close to the legs.",
				TargetMuscles: []string{"Hamstrings", "Glutes", "Lower Back"},
			},
			{
				ExerciseName:  "Plank",
				ExerciseType:  "Core",
				Description:   "Hold a straight line from head to heels on the forearms.",
				TargetMuscles: []string{"Abdominals", "Obliques"},
			},
			{
				ExerciseName:  "Brisk Walk",
				ExerciseType:  "Cardio",
				Description:   "Walk at a pace that raises the heart rate while still allowing conversation.",
				TargetMuscles: []string{"Legs", "Heart"},
			},
			{
				ExerciseName:  "Hip Flexor Stretch",
				ExerciseType:  "Mobility",
				Description:   "Half-kneeling stretch, tucking the pelvis and shifting forward gently.",
				TargetMuscles: []string{"Hip Flexors"},
			},
		},
		WorkoutPlan: models.WorkoutPlan{
			StructureType: "Weekly Split",
			Schedule: []models.ScheduleDay{
				{
					Day:   "Monday",
					Focus: "Lower Body",
					Routines: []models.Routine{
						{ExerciseName: "Goblet Squat", Sets: 3, Reps: "10", Rest: "90s"},
						{ExerciseName: "Romanian Deadlift", Sets: 3, Reps: "10", Rest: "90s"},
					},
				},
				{
					Day:   "Tuesday",
					Focus: "Upper Body",
					Routines: []models.Routine{
						{ExerciseName: "Push-Up", Sets: 3, Reps: "8-12", Rest: "60s"},
						{ExerciseName: "Dumbbell Row", Sets: 3, Reps: "10", Rest: "60s"},
					},
				},
				{
					Day:   "Wednesday",
					Focus: "Conditioning",
					Routines: []models.Routine{
						{ExerciseName: "Brisk Walk", Sets: 1, Reps: "30 min"},
						{ExerciseName: "Hip Flexor Stretch", Sets: 2, Reps: "45s per side"},
					},
				},
				{
					Day:   "Thursday",
					Focus: "Full Body",
					Routines: []models.Routine{
						{ExerciseName: "Goblet Squat", Sets: 3, Reps: "12", Rest: "60s"},
						{ExerciseName: "Push-Up", Sets: 3, Reps: "8-12", Rest: "60s"},
						{ExerciseName: "Dumbbell Row", Sets: 3, Reps: "12", Rest: "60s"},
					},
				},
				{
					Day:   "Friday",
					Focus: "Core and Mobility",
					Routines: []models.Routine{
						{ExerciseName: "Plank", Sets: 3, Reps: "30-45s", Rest: "45s"},
						{ExerciseName: "Hip Flexor Stretch", Sets: 2, Reps: "45s per side"},
					},
				},
			},
		},
	}
}
