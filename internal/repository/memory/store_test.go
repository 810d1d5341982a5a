package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealTrackAPI/internal/apperr"
	"mealTrackAPI/internal/meal"
	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/repository"
	"mealTrackAPI/internal/user"
)

func newStoreWithUser(t *testing.T) (*Store, string) {
	t.Helper()

	store := NewStore()
	token := uuid.New().String()
	err := store.CreateUser(context.Background(), &user.User{
		ID:           uuid.New().String(),
		Name:         "Test User",
		Email:        "test@example.com",
		SessionToken: token,
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return store, token
}

func insert(t *testing.T, store *Store, token, name string, at time.Time) {
	t.Helper()
	err := store.MutateMeals(context.Background(), token, func(ctx context.Context, tx repository.MealTx) error {
		return tx.InsertMeal(ctx, &meal.Meal{
			ID:                uuid.New().String(),
			OwnerSessionToken: token,
			Name:              name,
			CreatedAt:         at,
		})
	})
	require.NoError(t, err)
}

func TestMealsOrderedByCreatedAtThenSeq(t *testing.T) {
	store, token := newStoreWithUser(t)
	at := time.Date(2025, 4, 9, 12, 0, 0, 0, time.UTC)

	// Identical timestamps: insertion order must win, every time.
	insert(t, store, token, "first", at.Add(time.Hour))
	insert(t, store, token, "second", at)
	insert(t, store, token, "third", at)
	insert(t, store, token, "fourth", at)

	for i := 0; i < 10; i++ {
		meals, err := store.MealsByOwner(context.Background(), token)
		require.NoError(t, err)
		require.Len(t, meals, 4)
		assert.Equal(t, "second", meals[0].Name)
		assert.Equal(t, "third", meals[1].Name)
		assert.Equal(t, "fourth", meals[2].Name)
		assert.Equal(t, "first", meals[3].Name)
	}
}

func TestMutateMealsRollsBackOnError(t *testing.T) {
	store, token := newStoreWithUser(t)
	ctx := context.Background()

	insert(t, store, token, "keep me", time.Now().UTC())

	boom := errors.New("boom")
	err := store.MutateMeals(ctx, token, func(ctx context.Context, tx repository.MealTx) error {
		if err := tx.InsertMeal(ctx, &meal.Meal{ID: uuid.New().String(), Name: "lost"}); err != nil {
			return err
		}
		if err := tx.WriteAggregate(ctx, metrics.Aggregate{TotalMeals: 2, TotalMealsInDiet: 2}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	meals, err := store.MealsByOwner(ctx, token)
	require.NoError(t, err)
	assert.Len(t, meals, 1)

	agg, err := store.Aggregate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, metrics.Aggregate{}, agg)
}

func TestMutateMealsUnknownOwner(t *testing.T) {
	store, _ := newStoreWithUser(t)

	err := store.MutateMeals(context.Background(), "missing", func(ctx context.Context, tx repository.MealTx) error {
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestWriteAggregateValidatesAtBoundary(t *testing.T) {
	store, token := newStoreWithUser(t)

	err := store.MutateMeals(context.Background(), token, func(ctx context.Context, tx repository.MealTx) error {
		return tx.WriteAggregate(ctx, metrics.Aggregate{TotalMeals: 1})
	})
	assert.ErrorIs(t, err, apperr.ErrConsistency)
}

func TestCrossOwnerMealByID(t *testing.T) {
	store, token := newStoreWithUser(t)
	ctx := context.Background()

	other := uuid.New().String()
	require.NoError(t, store.CreateUser(ctx, &user.User{
		ID:           uuid.New().String(),
		Name:         "Other",
		Email:        "other@example.com",
		SessionToken: other,
		CreatedAt:    time.Now().UTC(),
	}))

	id := uuid.New().String()
	err := store.MutateMeals(ctx, token, func(ctx context.Context, tx repository.MealTx) error {
		return tx.InsertMeal(ctx, &meal.Meal{ID: id, OwnerSessionToken: token, Name: "mine", CreatedAt: time.Now().UTC()})
	})
	require.NoError(t, err)

	_, err = store.MealByID(ctx, id, other)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	found, err := store.MealByID(ctx, id, token)
	require.NoError(t, err)
	assert.Equal(t, "mine", found.Name)
}
