package meal

import "time"

type CreateMealRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	InDiet      bool   `json:"inDiet"`

	// Optional. Lets clients register a meal they forgot to log at the time
	// it was eaten. Zero value means "now".
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

type UpdateMealRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	InDiet      *bool   `json:"inDiet,omitempty"`
}
