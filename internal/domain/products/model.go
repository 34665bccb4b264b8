package products

import "time"

// Product es un ítem del catálogo de un veterinario.
type Product struct {
	ID             string    `json:"id"`
	VeterinarianID string    `json:"veterinarian_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Category       string    `json:"category,omitempty"`
	Price          float64   `json:"price"`
	StockQuantity  int       `json:"stock_quantity"`
	IsActive       bool      `json:"is_active"`
	Images         []string  `json:"images,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Price         float64  `json:"price"`
	StockQuantity int      `json:"stock_quantity"`
	IsActive      bool     `json:"is_active"`
	Images        []string `json:"images,omitempty"`
}

type UpdateInput struct {
	Name          *string   `json:"name,omitempty"`
	Description   *string   `json:"description,omitempty"`
	Category      *string   `json:"category,omitempty"`
	Price         *float64  `json:"price,omitempty"`
	IsActive      *bool     `json:"is_active,omitempty"`
	Images        *[]string `json:"images,omitempty"`
}
