// Package metrics is the pure aggregation core. It never touches storage:
// every function takes values in and hands values back, and the lifecycle
// coordinator in the services package decides when results get persisted.
package metrics

import (
	"fmt"

	"mealTrackAPI/internal/apperr"
)

// Aggregate is the per-user summary kept consistent with the user's meal
// history after every mutation.
type Aggregate struct {
	TotalMeals          int `json:"totalMeals" db:"total_meals"`
	TotalMealsInDiet    int `json:"totalMealsInDiet" db:"total_meals_in_diet"`
	TotalMealsOutDiet   int `json:"totalMealsOutDiet" db:"total_meals_out_diet"`
	LongestInDietStreak int `json:"longestInDietStreak" db:"longest_in_diet_streak"`
}

// Validate checks the structural invariants: no negative counters and the
// two diet buckets partitioning the total.
func (a Aggregate) Validate() error {
	if a.TotalMeals < 0 || a.TotalMealsInDiet < 0 || a.TotalMealsOutDiet < 0 || a.LongestInDietStreak < 0 {
		return fmt.Errorf("%w: negative counter in %+v", apperr.ErrConsistency, a)
	}
	if a.TotalMealsInDiet+a.TotalMealsOutDiet != a.TotalMeals {
		return fmt.Errorf("%w: buckets %d+%d do not partition total %d",
			apperr.ErrConsistency, a.TotalMealsInDiet, a.TotalMealsOutDiet, a.TotalMeals)
	}
	return nil
}

// ApplyCountDelta adjusts the counters for exactly one meal being inserted
// (delta = +1) or removed (delta = -1). A decrement that would push any
// counter below zero means the aggregate has diverged from the meal history
// upstream, so it is reported instead of floored silently.
func ApplyCountDelta(a Aggregate, inDiet bool, delta int) (Aggregate, error) {
	if delta != 1 && delta != -1 {
		return a, fmt.Errorf("%w: count delta must be +1 or -1, got %d", apperr.ErrConsistency, delta)
	}

	a.TotalMeals += delta
	if inDiet {
		a.TotalMealsInDiet += delta
	} else {
		a.TotalMealsOutDiet += delta
	}

	if a.TotalMeals < 0 || a.TotalMealsInDiet < 0 || a.TotalMealsOutDiet < 0 {
		return Aggregate{}, fmt.Errorf("%w: decrement of empty counter (inDiet=%t)", apperr.ErrConsistency, inDiet)
	}
	return a, nil
}

// MoveBucket shifts one meal between the two diet buckets as a single
// adjustment, for when a meal's inDiet flag is toggled in place. TotalMeals
// never changes, so intermediate states where a meal is counted twice (or
// not at all) cannot be observed.
func MoveBucket(a Aggregate, nowInDiet bool) (Aggregate, error) {
	if nowInDiet {
		a.TotalMealsOutDiet--
		a.TotalMealsInDiet++
	} else {
		a.TotalMealsInDiet--
		a.TotalMealsOutDiet++
	}

	if a.TotalMealsInDiet < 0 || a.TotalMealsOutDiet < 0 {
		return Aggregate{}, fmt.Errorf("%w: bucket move from empty bucket (nowInDiet=%t)", apperr.ErrConsistency, nowInDiet)
	}
	return a, nil
}

// LongestStreak returns the length of the longest run of consecutive true
// values. The caller hands in the inDiet flags of the user's current meals
// ordered by (createdAt asc, seq asc); passing them pre-ordered keeps this a
// single O(n) pass and keeps the result deterministic for meals that share a
// timestamp.
func LongestStreak(inDiet []bool) int {
	current, best := 0, 0
	for _, in := range inDiet {
		if in {
			current++
			if current > best {
				best = current
			}
		} else {
			current = 0
		}
	}
	return best
}
