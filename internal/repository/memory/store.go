// Package memory implements the repository contract over process memory.
// It backs the test suite, and mirrors the transactional semantics of the
// postgres store: a mutation works on a copy of the owner's state and the
// copy only replaces the live state when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"

	"mealTrackAPI/internal/apperr"
	"mealTrackAPI/internal/meal"
	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/repository"
	"mealTrackAPI/internal/user"
)

type userState struct {
	mu      sync.Mutex // serializes mutations for this owner
	user    user.User
	meals   []meal.Meal
	nextSeq int64
}

type Store struct {
	mu    sync.RWMutex // guards the maps, not per-user state
	users map[string]*userState
}

func NewStore() *Store {
	return &Store{users: make(map[string]*userState)}
}

func (s *Store) Init(ctx context.Context) error { return nil }

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.users {
		if st.user.Email == u.Email {
			return apperr.ErrEmailTaken
		}
	}
	s.users[u.SessionToken] = &userState{user: *u, nextSeq: 1}
	return nil
}

func (s *Store) state(token string) (*userState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[token]
	return st, ok
}

func (s *Store) UserBySessionToken(ctx context.Context, token string) (*user.User, error) {
	st, ok := s.state(token)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	u := st.user
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*user.User, error) {
	return s.findUser(func(u user.User) bool { return u.ID == id })
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(func(u user.User) bool { return u.Email == email })
}

func (s *Store) findUser(match func(user.User) bool) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.users {
		st.mu.Lock()
		u := st.user
		st.mu.Unlock()
		if match(u) {
			return &u, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]user.User, 0, len(s.users))
	for _, st := range s.users {
		st.mu.Lock()
		users = append(users, st.user)
		st.mu.Unlock()
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

func (s *Store) MealByID(ctx context.Context, id, ownerToken string) (*meal.Meal, error) {
	st, ok := s.state(ownerToken)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, m := range st.meals {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *Store) MealsByOwner(ctx context.Context, ownerToken string) ([]meal.Meal, error) {
	st, ok := s.state(ownerToken)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return orderedCopy(st.meals), nil
}

func (s *Store) Aggregate(ctx context.Context, ownerToken string) (metrics.Aggregate, error) {
	u, err := s.UserBySessionToken(ctx, ownerToken)
	if err != nil {
		return metrics.Aggregate{}, err
	}
	return u.Metrics, nil
}

func (s *Store) MutateMeals(ctx context.Context, ownerToken string, fn func(ctx context.Context, tx repository.MealTx) error) error {
	st, ok := s.state(ownerToken)
	if !ok {
		return apperr.ErrUnauthorized
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &mealTx{
		meals:     append([]meal.Meal(nil), st.meals...),
		aggregate: st.user.Metrics,
		nextSeq:   st.nextSeq,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	st.meals = tx.meals
	st.user.Metrics = tx.aggregate
	st.nextSeq = tx.nextSeq
	return nil
}

type mealTx struct {
	meals     []meal.Meal
	aggregate metrics.Aggregate
	nextSeq   int64
}

func (t *mealTx) InsertMeal(ctx context.Context, m *meal.Meal) error {
	m.Seq = t.nextSeq
	t.nextSeq++
	t.meals = append(t.meals, *m)
	return nil
}

func (t *mealTx) UpdateMeal(ctx context.Context, m *meal.Meal) error {
	for i := range t.meals {
		if t.meals[i].ID == m.ID {
			updated := *m
			updated.Seq = t.meals[i].Seq
			updated.CreatedAt = t.meals[i].CreatedAt
			t.meals[i] = updated
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (t *mealTx) DeleteMeal(ctx context.Context, id string) error {
	for i := range t.meals {
		if t.meals[i].ID == id {
			t.meals = append(t.meals[:i], t.meals[i+1:]...)
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (t *mealTx) MealByID(ctx context.Context, id string) (*meal.Meal, error) {
	for _, m := range t.meals {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (t *mealTx) Meals(ctx context.Context) ([]meal.Meal, error) {
	return orderedCopy(t.meals), nil
}

func (t *mealTx) Aggregate(ctx context.Context) (metrics.Aggregate, error) {
	if err := t.aggregate.Validate(); err != nil {
		return metrics.Aggregate{}, err
	}
	return t.aggregate, nil
}

func (t *mealTx) WriteAggregate(ctx context.Context, a metrics.Aggregate) error {
	if err := a.Validate(); err != nil {
		return err
	}
	t.aggregate = a
	return nil
}

func orderedCopy(meals []meal.Meal) []meal.Meal {
	out := append([]meal.Meal(nil), meals...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
