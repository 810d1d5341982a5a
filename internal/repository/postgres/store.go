package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mealTrackAPI/internal/apperr"
	"mealTrackAPI/internal/meal"
	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/repository"
	"mealTrackAPI/internal/user"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	session_token TEXT NOT NULL UNIQUE,
	total_meals INT NOT NULL DEFAULT 0,
	total_meals_in_diet INT NOT NULL DEFAULT 0,
	total_meals_out_diet INT NOT NULL DEFAULT 0,
	longest_in_diet_streak INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);
`

const createMealsTable = `
CREATE TABLE IF NOT EXISTS meals (
	id UUID PRIMARY KEY,
	owner_session_token TEXT NOT NULL REFERENCES users(session_token) ON DELETE CASCADE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	in_diet BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	seq BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_meals_owner_order ON meals (owner_session_token, created_at, seq);
`

// Store is the pgx-backed repository.Store. Per-user mutation serialization
// comes from locking the owner's users row for the duration of the
// transaction, so two mutations for the same user can never interleave
// between reading and writing the aggregate, while different users never
// contend.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) repository.Store {
	return &Store{db: db}
}

func (s *Store) Init(ctx context.Context) error {
	for _, stmt := range []string{createUsersTable, createMealsTable} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema: %v", apperr.ErrStorage, err)
		}
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	query := `
	INSERT INTO users (id, name, email, session_token, total_meals, total_meals_in_diet, total_meals_out_diet, longest_in_diet_streak, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.SessionToken,
		u.Metrics.TotalMeals,
		u.Metrics.TotalMealsInDiet,
		u.Metrics.TotalMealsOutDiet,
		u.Metrics.LongestInDietStreak,
		u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.ErrEmailTaken
		}
		return fmt.Errorf("%w: insert user: %v", apperr.ErrStorage, err)
	}
	return nil
}

const selectUser = `
SELECT id, name, email, session_token, total_meals, total_meals_in_diet, total_meals_out_diet, longest_in_diet_streak, created_at
FROM users
`

func (s *Store) userBy(ctx context.Context, where string, arg any) (*user.User, error) {
	u := &user.User{}
	err := s.db.QueryRow(ctx, selectUser+where, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.SessionToken,
		&u.Metrics.TotalMeals,
		&u.Metrics.TotalMealsInDiet,
		&u.Metrics.TotalMealsOutDiet,
		&u.Metrics.LongestInDietStreak,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get user: %v", apperr.ErrStorage, err)
	}
	if err := u.Metrics.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) UserBySessionToken(ctx context.Context, token string) (*user.User, error) {
	return s.userBy(ctx, `WHERE session_token = $1`, token)
}

func (s *Store) UserByID(ctx context.Context, id string) (*user.User, error) {
	return s.userBy(ctx, `WHERE id = $1`, id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.userBy(ctx, `WHERE email = $1`, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	rows, err := s.db.Query(ctx, selectUser+`ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		if err := rows.Scan(
			&u.ID,
			&u.Name,
			&u.Email,
			&u.SessionToken,
			&u.Metrics.TotalMeals,
			&u.Metrics.TotalMealsInDiet,
			&u.Metrics.TotalMealsOutDiet,
			&u.Metrics.LongestInDietStreak,
			&u.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan user: %v", apperr.ErrStorage, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list users: %v", apperr.ErrStorage, err)
	}
	return users, nil
}

const selectMeal = `
SELECT id, owner_session_token, name, description, in_diet, created_at, seq
FROM meals
`

func (s *Store) MealByID(ctx context.Context, id, ownerToken string) (*meal.Meal, error) {
	m := &meal.Meal{}
	err := s.db.QueryRow(ctx, selectMeal+`WHERE id = $1 AND owner_session_token = $2`, id, ownerToken).Scan(
		&m.ID,
		&m.OwnerSessionToken,
		&m.Name,
		&m.Description,
		&m.InDiet,
		&m.CreatedAt,
		&m.Seq,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get meal: %v", apperr.ErrStorage, err)
	}
	return m, nil
}

func (s *Store) MealsByOwner(ctx context.Context, ownerToken string) ([]meal.Meal, error) {
	return scanMeals(s.db.Query(ctx, selectMeal+`WHERE owner_session_token = $1 ORDER BY created_at, seq`, ownerToken))
}

func (s *Store) Aggregate(ctx context.Context, ownerToken string) (metrics.Aggregate, error) {
	u, err := s.UserBySessionToken(ctx, ownerToken)
	if err != nil {
		return metrics.Aggregate{}, err
	}
	return u.Metrics, nil
}

func (s *Store) MutateMeals(ctx context.Context, ownerToken string, fn func(ctx context.Context, tx repository.MealTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", apperr.ErrStorage, err)
	}
	defer tx.Rollback(ctx)

	// Serialize all mutations for this owner on the users row. The lock is
	// released on commit or rollback together with the data changes, so the
	// meal write and the aggregate write land as one unit.
	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE session_token = $1 FOR UPDATE`, ownerToken).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrUnauthorized
		}
		return fmt.Errorf("%w: lock user: %v", apperr.ErrStorage, err)
	}

	if err := fn(ctx, &mealTx{tx: tx, ownerToken: ownerToken}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrStorage, err)
	}
	return nil
}

type mealTx struct {
	tx         pgx.Tx
	ownerToken string
}

func (t *mealTx) InsertMeal(ctx context.Context, m *meal.Meal) error {
	err := t.tx.QueryRow(ctx, `
	INSERT INTO meals (id, owner_session_token, name, description, in_diet, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING seq
	`, m.ID, m.OwnerSessionToken, m.Name, m.Description, m.InDiet, m.CreatedAt).Scan(&m.Seq)
	if err != nil {
		return fmt.Errorf("%w: insert meal: %v", apperr.ErrStorage, err)
	}
	return nil
}

func (t *mealTx) UpdateMeal(ctx context.Context, m *meal.Meal) error {
	tag, err := t.tx.Exec(ctx, `
	UPDATE meals SET name = $1, description = $2, in_diet = $3
	WHERE id = $4 AND owner_session_token = $5
	`, m.Name, m.Description, m.InDiet, m.ID, t.ownerToken)
	if err != nil {
		return fmt.Errorf("%w: update meal: %v", apperr.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *mealTx) DeleteMeal(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM meals WHERE id = $1 AND owner_session_token = $2`, id, t.ownerToken)
	if err != nil {
		return fmt.Errorf("%w: delete meal: %v", apperr.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *mealTx) MealByID(ctx context.Context, id string) (*meal.Meal, error) {
	m := &meal.Meal{}
	err := t.tx.QueryRow(ctx, selectMeal+`WHERE id = $1 AND owner_session_token = $2`, id, t.ownerToken).Scan(
		&m.ID,
		&m.OwnerSessionToken,
		&m.Name,
		&m.Description,
		&m.InDiet,
		&m.CreatedAt,
		&m.Seq,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get meal: %v", apperr.ErrStorage, err)
	}
	return m, nil
}

func (t *mealTx) Meals(ctx context.Context) ([]meal.Meal, error) {
	return scanMeals(t.tx.Query(ctx, selectMeal+`WHERE owner_session_token = $1 ORDER BY created_at, seq`, t.ownerToken))
}

func (t *mealTx) Aggregate(ctx context.Context) (metrics.Aggregate, error) {
	var a metrics.Aggregate
	err := t.tx.QueryRow(ctx, `
	SELECT total_meals, total_meals_in_diet, total_meals_out_diet, longest_in_diet_streak
	FROM users WHERE session_token = $1
	`, t.ownerToken).Scan(
		&a.TotalMeals,
		&a.TotalMealsInDiet,
		&a.TotalMealsOutDiet,
		&a.LongestInDietStreak,
	)
	if err != nil {
		return metrics.Aggregate{}, fmt.Errorf("%w: read aggregate: %v", apperr.ErrStorage, err)
	}
	if err := a.Validate(); err != nil {
		return metrics.Aggregate{}, err
	}
	return a, nil
}

func (t *mealTx) WriteAggregate(ctx context.Context, a metrics.Aggregate) error {
	if err := a.Validate(); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
	UPDATE users SET total_meals = $1, total_meals_in_diet = $2, total_meals_out_diet = $3, longest_in_diet_streak = $4
	WHERE session_token = $5
	`, a.TotalMeals, a.TotalMealsInDiet, a.TotalMealsOutDiet, a.LongestInDietStreak, t.ownerToken)
	if err != nil {
		return fmt.Errorf("%w: write aggregate: %v", apperr.ErrStorage, err)
	}
	return nil
}

func scanMeals(rows pgx.Rows, err error) ([]meal.Meal, error) {
	if err != nil {
		return nil, fmt.Errorf("%w: list meals: %v", apperr.ErrStorage, err)
	}
	defer rows.Close()

	var meals []meal.Meal
	for rows.Next() {
		var m meal.Meal
		if err := rows.Scan(
			&m.ID,
			&m.OwnerSessionToken,
			&m.Name,
			&m.Description,
			&m.InDiet,
			&m.CreatedAt,
			&m.Seq,
		); err != nil {
			return nil, fmt.Errorf("%w: scan meal: %v", apperr.ErrStorage, err)
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list meals: %v", apperr.ErrStorage, err)
	}
	return meals, nil
}
