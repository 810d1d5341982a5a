package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mealTrackAPI/internal/apperr"
	"mealTrackAPI/internal/meal"
	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/repository"
)

var consistencyViolations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "meal_consistency_violations_total",
		Help: "Aggregate updates aborted because they would break the metrics invariants",
	},
	[]string{"operation"},
)

// InitPrometheus registers the service metrics. Call this from main.go
func InitPrometheus() {
	prometheus.MustRegister(consistencyViolations)
}

// MealService is the meal lifecycle coordinator. Every mutation runs the
// meal write, the counter adjustment and the full streak recompute inside a
// single store mutation, so a reader can never observe the aggregate
// diverging from the recorded meals.
type MealService struct {
	store repository.Store
}

func NewMealService(store repository.Store) *MealService {
	return &MealService{store: store}
}

func (s *MealService) CreateMeal(ctx context.Context, token string, req *meal.CreateMealRequest) (*meal.Meal, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	if req.CreatedAt != nil {
		// Backdated entry. The unconditional streak rescan below makes this
		// safe: ordering is recomputed from the full history, not appended.
		createdAt = req.CreatedAt.UTC()
	}

	m := &meal.Meal{
		ID:                uuid.New().String(),
		OwnerSessionToken: token,
		Name:              req.Name,
		Description:       req.Description,
		InDiet:            req.InDiet,
		CreatedAt:         createdAt,
	}

	err := s.mutate(ctx, token, "create", func(ctx context.Context, tx repository.MealTx) error {
		if err := tx.InsertMeal(ctx, m); err != nil {
			return err
		}

		agg, err := tx.Aggregate(ctx)
		if err != nil {
			return err
		}
		agg, err = metrics.ApplyCountDelta(agg, m.InDiet, +1)
		if err != nil {
			return err
		}
		return s.recomputeStreak(ctx, tx, agg)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MealService) UpdateMeal(ctx context.Context, token, id string, req *meal.UpdateMealRequest) (*meal.Meal, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}

	var updated *meal.Meal
	err := s.mutate(ctx, token, "update", func(ctx context.Context, tx repository.MealTx) error {
		current, err := tx.MealByID(ctx, id)
		if err != nil {
			return err
		}

		next := *current
		if req.Name != nil {
			next.Name = *req.Name
		}
		if req.Description != nil {
			next.Description = *req.Description
		}
		if req.InDiet != nil {
			next.InDiet = *req.InDiet
		}

		agg, err := tx.Aggregate(ctx)
		if err != nil {
			return err
		}
		if next.InDiet != current.InDiet {
			// One logical bucket move, not an independent -1 and +1.
			agg, err = metrics.MoveBucket(agg, next.InDiet)
			if err != nil {
				return err
			}
		}

		if err := tx.UpdateMeal(ctx, &next); err != nil {
			return err
		}
		if err := s.recomputeStreak(ctx, tx, agg); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *MealService) DeleteMeal(ctx context.Context, token, id string) error {
	if err := s.authorize(ctx, token); err != nil {
		return err
	}

	return s.mutate(ctx, token, "delete", func(ctx context.Context, tx repository.MealTx) error {
		current, err := tx.MealByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteMeal(ctx, id); err != nil {
			return err
		}

		agg, err := tx.Aggregate(ctx)
		if err != nil {
			return err
		}
		agg, err = metrics.ApplyCountDelta(agg, current.InDiet, -1)
		if err != nil {
			return err
		}
		return s.recomputeStreak(ctx, tx, agg)
	})
}

func (s *MealService) GetMeal(ctx context.Context, token, id string) (*meal.Meal, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	return s.store.MealByID(ctx, id, token)
}

func (s *MealService) ListMeals(ctx context.Context, token string) ([]meal.Meal, error) {
	if err := s.authorize(ctx, token); err != nil {
		return nil, err
	}
	return s.store.MealsByOwner(ctx, token)
}

func (s *MealService) Metrics(ctx context.Context, token string) (metrics.Aggregate, error) {
	u, err := s.store.UserBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return metrics.Aggregate{}, apperr.ErrUnauthorized
		}
		return metrics.Aggregate{}, err
	}
	return u.Metrics, nil
}

func (s *MealService) authorize(ctx context.Context, token string) error {
	_, err := s.store.UserBySessionToken(ctx, token)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.ErrUnauthorized
	}
	return err
}

// recomputeStreak rescans the owner's full ordered history and writes the
// finished aggregate. Always doing the full scan keeps every mutation path
// (toggles, backdated inserts, deletions splitting a run) on the same code.
func (s *MealService) recomputeStreak(ctx context.Context, tx repository.MealTx, agg metrics.Aggregate) error {
	meals, err := tx.Meals(ctx)
	if err != nil {
		return err
	}
	flags := make([]bool, len(meals))
	for i, m := range meals {
		flags[i] = m.InDiet
	}
	agg.LongestInDietStreak = metrics.LongestStreak(flags)
	return tx.WriteAggregate(ctx, agg)
}

func (s *MealService) mutate(ctx context.Context, token, operation string, fn func(ctx context.Context, tx repository.MealTx) error) error {
	err := s.store.MutateMeals(ctx, token, fn)
	if errors.Is(err, apperr.ErrConsistency) {
		log.Printf("meal %s for %s aborted: %v", operation, token, err)
		consistencyViolations.WithLabelValues(operation).Inc()
	}
	return err
}
