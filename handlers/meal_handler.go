package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"mealTrackAPI/internal/apperr"
	"mealTrackAPI/internal/meal"
	"mealTrackAPI/middleware"
	"mealTrackAPI/services"
)

type MealHandler struct {
	mealService *services.MealService
}

func NewMealHandler(mealService *services.MealService) *MealHandler {
	return &MealHandler{
		mealService: mealService,
	}
}

func (h *MealHandler) CreateMeal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, ok := middleware.GetSessionToken(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
		return
	}

	var req meal.CreateMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Meal name is required")
		return
	}

	created, err := h.mealService.CreateMeal(ctx, token, &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *MealHandler) UpdateMeal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, ok := middleware.GetSessionToken(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
		return
	}

	var req meal.UpdateMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.mealService.UpdateMeal(ctx, token, mux.Vars(r)["id"], &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *MealHandler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, ok := middleware.GetSessionToken(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
		return
	}

	if err := h.mealService.DeleteMeal(ctx, token, mux.Vars(r)["id"]); err != nil {
		respondWithServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *MealHandler) GetMeal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, ok := middleware.GetSessionToken(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
		return
	}

	m, err := h.mealService.GetMeal(ctx, token, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, m)
}

func (h *MealHandler) ListMeals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, ok := middleware.GetSessionToken(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
		return
	}

	meals, err := h.mealService.ListMeals(ctx, token)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	if meals == nil {
		meals = []meal.Meal{}
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"meals": meals})
}

func (h *MealHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, ok := middleware.GetSessionToken(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
		return
	}

	agg, err := h.mealService.Metrics(ctx, token)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, agg)
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized!")
	case errors.Is(err, apperr.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Meal not found")
	default:
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
