package repository

import (
	"context"

	"mealTrackAPI/internal/meal"
	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/user"
)

// Store defines persistence operations for users, meals and the per-user
// metrics aggregate. Implementations must wrap their own failures with
// apperr.ErrStorage and report missing rows as apperr.ErrNotFound.
type Store interface {
	Init(ctx context.Context) error

	CreateUser(ctx context.Context, u *user.User) error
	UserBySessionToken(ctx context.Context, token string) (*user.User, error)
	UserByID(ctx context.Context, id string) (*user.User, error)
	UserByEmail(ctx context.Context, email string) (*user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)

	// MealByID resolves a meal by id and owner. A meal owned by someone else
	// is reported as not found, the same as a meal that does not exist.
	MealByID(ctx context.Context, id, ownerToken string) (*meal.Meal, error)

	// MealsByOwner returns the owner's current meals ordered by
	// (created_at asc, seq asc).
	MealsByOwner(ctx context.Context, ownerToken string) ([]meal.Meal, error)

	Aggregate(ctx context.Context, ownerToken string) (metrics.Aggregate, error)

	// MutateMeals runs fn within the owner's serialization domain: no other
	// mutation for the same owner interleaves with it, and every write fn
	// performs is committed as one unit or not at all. If fn returns an
	// error (or ctx is cancelled) nothing fn wrote becomes visible.
	// Mutations for different owners proceed independently.
	MutateMeals(ctx context.Context, ownerToken string, fn func(ctx context.Context, tx MealTx) error) error
}

// MealTx is the write scope handed to a MutateMeals callback. All reads see
// the in-progress state of the mutation.
type MealTx interface {
	InsertMeal(ctx context.Context, m *meal.Meal) error
	UpdateMeal(ctx context.Context, m *meal.Meal) error
	DeleteMeal(ctx context.Context, id string) error
	MealByID(ctx context.Context, id string) (*meal.Meal, error)
	Meals(ctx context.Context) ([]meal.Meal, error)
	Aggregate(ctx context.Context) (metrics.Aggregate, error)
	WriteAggregate(ctx context.Context, a metrics.Aggregate) error
}
