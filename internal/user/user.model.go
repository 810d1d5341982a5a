package user

import (
	"time"

	"mealTrackAPI/internal/metrics"
)

type User struct {
	ID           string            `json:"id" db:"id"`
	Name         string            `json:"name" db:"name"`
	Email        string            `json:"email" db:"email"`
	SessionToken string            `json:"-" db:"session_token"`
	Metrics      metrics.Aggregate `json:"metrics"`
	CreatedAt    time.Time         `json:"createdAt" db:"created_at"`
}
