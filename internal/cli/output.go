package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/fitplan/internal/models"
)

func jsonEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

// printFiles writes one line per uploaded file.
func printFiles(w io.Writer, files []models.FileRecord) {
	for _, f := range files {
		line := fmt.Sprintf("  %s  %-10s %8s  %s", f.ID, f.Status, formatBytes(f.Size), f.OriginalName)
		if f.Chunks > 0 {
			line += fmt.Sprintf(" (%d chunks)", f.Chunks)
		}
		if f.Error != "" {
			line += "  error: " + f.Error
		}
		fmt.Fprintln(w, line)
	}
}

// printProgram renders a workout program as readable text.
func printProgram(w io.Writer, p models.WorkoutProgram) {
	fmt.Fprintf(w, "%s\n%s\n\n", p.ProgramName, strings.Repeat("=", len(p.ProgramName)))
	fmt.Fprintf(w, "Goal: %s\n", p.ProgramGoal)
	if p.ProgramDescription != "" {
		fmt.Fprintf(w, "\n%s\n", p.ProgramDescription)
	}
	if len(p.RequiredGear) > 0 {
		fmt.Fprintf(w, "\nGear: %s\n", strings.Join(p.RequiredGear, ", "))
	}

	fmt.Fprintf(w, "\nExercises\n")
	for _, e := range p.Exercises {
		fmt.Fprintf(w, "  - %s [%s]", e.ExerciseName, e.ExerciseType)
		if len(e.TargetMuscles) > 0 {
			fmt.Fprintf(w, " (%s)", strings.Join(e.TargetMuscles, ", "))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nSchedule (%s)\n", p.WorkoutPlan.StructureType)
	for _, d := range p.WorkoutPlan.Schedule {
		fmt.Fprintf(w, "  %s: %s\n", d.Day, d.Focus)
		for _, r := range d.Routines {
			fmt.Fprintf(w, "    %s\n", formatRoutine(r))
		}
	}
}

func formatRoutine(r models.Routine) string {
	s := r.ExerciseName
	switch {
	case r.Sets > 0 && r.Reps != "":
		s += fmt.Sprintf(" %dx%s", r.Sets, r.Reps)
	case r.Sets > 0:
		s += fmt.Sprintf(" %d sets", r.Sets)
	case r.Reps != "":
		s += " " + r.Reps
	}
	if r.Rest != "" {
		s += ", rest " + r.Rest
	}
	if r.Notes != "" {
		s += " (" + r.Notes + ")"
	}
	return s
}
