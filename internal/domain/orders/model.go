package orders

import "time"

// Status de una orden.
// @Enum pending, paid, shipped, completed, cancelled
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order es la cabecera de una compra (cliente -> catálogo de un vet).
type Order struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	VeterinarianID string    `json:"veterinarian_id"`
	TotalAmount    float64   `json:"total_amount"`
	Status         Status    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OrderItem es una línea de la orden.
type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// ProductSales acumula ventas por producto en una ventana de tiempo.
type ProductSales struct {
	Quantity int
	Revenue  float64
}
