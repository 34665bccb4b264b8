package pets

import "time"

// Pet es el perfil de una mascota registrada en el sistema.
// El backend es la fuente de verdad; esto es la representación cacheada.
type Pet struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Breed       string    `json:"breed"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Weight      float64   `json:"weight"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateInput struct {
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Breed       string    `json:"breed"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Weight      float64   `json:"weight"`
	OwnerID     string    `json:"owner_id,omitempty"`
}

type UpdateInput struct {
	// Punteros para update parcial: nil = no tocar.
	Name        *string    `json:"name,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Breed       *string    `json:"breed,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Weight      *float64   `json:"weight,omitempty"`
}
