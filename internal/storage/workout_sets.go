package storage

import (
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

const setColumns = 8

// buildSetInsert builds one multi-row INSERT for the sets of an exercise.
// Set order is kept in the position column. Callers replace the parent
// exercise first, so rows are always new.
func buildSetInsert(exerciseID uuid.UUID, sets []models.SetEntry) (string, []any) {
	query := `INSERT INTO workout_sets (id, exercise_id, position, weight, reps, duration_min, distance, calories) VALUES `
	args := make([]any, 0, len(sets)*setColumns)
	valueStrings := make([]string, 0, len(sets))

	for i, s := range sets {
		base := i * setColumns
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, s.ID, exerciseID, i, s.Weight, s.Reps, s.DurationMin, s.Distance, s.Calories)
	}

	query += strings.Join(valueStrings, ",")
	return query, args
}
