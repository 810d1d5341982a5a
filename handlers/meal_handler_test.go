package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealTrackAPI/internal/meal"
	"mealTrackAPI/internal/metrics"
	"mealTrackAPI/internal/repository/memory"
	"mealTrackAPI/middleware"
	"mealTrackAPI/services"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	store := memory.NewStore()
	userHandler := NewUserHandler(services.NewUserService(store))
	mealHandler := NewMealHandler(services.NewMealService(store))

	r := mux.NewRouter()
	r.HandleFunc("/create-user", userHandler.CreateUser).Methods("POST")
	r.HandleFunc("/list-users", userHandler.ListUsers).Methods("GET")
	r.HandleFunc("/users/{id}", userHandler.GetUser).Methods("GET")

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.SessionAuthMiddleware)
	protected.HandleFunc("/meals", mealHandler.CreateMeal).Methods("POST")
	protected.HandleFunc("/meals", mealHandler.ListMeals).Methods("GET")
	protected.HandleFunc("/meals/{id}", mealHandler.GetMeal).Methods("GET")
	protected.HandleFunc("/meals/{id}", mealHandler.UpdateMeal).Methods("PUT")
	protected.HandleFunc("/meals/{id}", mealHandler.DeleteMeal).Methods("DELETE")
	protected.HandleFunc("/metrics", mealHandler.GetMetrics).Methods("GET")

	return r
}

func createTestUser(t *testing.T, r *mux.Router, email string) *http.Cookie {
	t.Helper()

	body := fmt.Sprintf(`{"name": "Test User", "email": "%s"}`, email)
	req := httptest.NewRequest(http.MethodPost, "/create-user", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			require.NotEmpty(t, c.Value)
			return c
		}
	}
	t.Fatal("session cookie not issued")
	return nil
}

func doJSON(r *mux.Router, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

// TestMealLifecycleFlow walks the whole surface: sign up, log meals, edit,
// delete, and watch the metrics follow along.
func TestMealLifecycleFlow(t *testing.T) {
	r := newTestRouter(t)

	t.Log("Step 1: User signs up and receives a session cookie")
	cookie := createTestUser(t, r, "flow@example.com")

	t.Log("Step 2: User logs three meals")
	var created []meal.Meal
	for i, in := range []bool{true, false, true} {
		body := fmt.Sprintf(`{"name": "meal %d", "description": "d", "inDiet": %t}`, i, in)
		rr := doJSON(r, http.MethodPost, "/api/v1/meals", body, cookie)
		require.Equal(t, http.StatusCreated, rr.Code)

		var m meal.Meal
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
		created = append(created, m)
	}

	t.Log("Step 3: Metrics reflect the three meals")
	rr := doJSON(r, http.MethodGet, "/api/v1/metrics", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var agg metrics.Aggregate
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agg))
	assert.Equal(t, 3, agg.TotalMeals)
	assert.Equal(t, 2, agg.TotalMealsInDiet)
	assert.Equal(t, 1, agg.TotalMealsOutDiet)
	assert.Equal(t, 1, agg.LongestInDietStreak)

	t.Log("Step 4: Toggling the middle meal merges the streak")
	rr = doJSON(r, http.MethodPut, "/api/v1/meals/"+created[1].ID, `{"inDiet": true}`, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(r, http.MethodGet, "/api/v1/metrics", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &agg))
	assert.Equal(t, 3, agg.LongestInDietStreak)
	assert.Equal(t, 0, agg.TotalMealsOutDiet)

	t.Log("Step 5: Deleting a meal shrinks the counts")
	rr = doJSON(r, http.MethodDelete, "/api/v1/meals/"+created[0].ID, "", cookie)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(r, http.MethodGet, "/api/v1/meals", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var listing struct {
		Meals []meal.Meal `json:"meals"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listing))
	assert.Len(t, listing.Meals, 2)
}

func TestMealRoutesRequireSession(t *testing.T) {
	r := newTestRouter(t)

	rr := doJSON(r, http.MethodPost, "/api/v1/meals", `{"name": "lunch"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(r, http.MethodGet, "/api/v1/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStaleSessionTokenIsUnauthorized(t *testing.T) {
	r := newTestRouter(t)

	stale := &http.Cookie{Name: middleware.SessionCookieName, Value: "stale-token"}
	rr := doJSON(r, http.MethodPost, "/api/v1/meals", `{"name": "lunch"}`, stale)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestForeignMealIsNotFound(t *testing.T) {
	r := newTestRouter(t)

	owner := createTestUser(t, r, "owner@example.com")
	intruder := createTestUser(t, r, "intruder@example.com")

	rr := doJSON(r, http.MethodPost, "/api/v1/meals", `{"name": "secret salad", "inDiet": true}`, owner)
	require.Equal(t, http.StatusCreated, rr.Code)
	var m meal.Meal
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))

	rr = doJSON(r, http.MethodGet, "/api/v1/meals/"+m.ID, "", intruder)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(r, http.MethodDelete, "/api/v1/meals/"+m.ID, "", intruder)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCreateUserDuplicateEmailReturns400(t *testing.T) {
	r := newTestRouter(t)

	createTestUser(t, r, "dup@example.com")

	body := `{"name": "Test User", "email": "dup@example.com"}`
	rr := doJSON(r, http.MethodPost, "/create-user", body, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBearerTokenAccepted(t *testing.T) {
	r := newTestRouter(t)

	cookie := createTestUser(t, r, "bearer@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
