package meal

import "time"

type Meal struct {
	ID                string    `json:"id" db:"id"`
	OwnerSessionToken string    `json:"-" db:"owner_session_token"`
	Name              string    `json:"name" db:"name"`
	Description       string    `json:"description" db:"description"`
	InDiet            bool      `json:"inDiet" db:"in_diet"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`

	// Seq is assigned by the store on insert and only ever increases for a
	// given owner. It breaks ordering ties between meals that share the same
	// CreatedAt so streak recomputation stays deterministic.
	Seq int64 `json:"-" db:"seq"`
}
