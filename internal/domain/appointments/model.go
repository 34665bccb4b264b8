package appointments

import "time"

// Status define los estados de un turno.
// @Enum scheduled, completed, cancelled, rescheduled
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
)

// Appointment es un turno dentro del alcance de visibilidad del usuario
// autenticado (cliente: los suyos; vet: su agenda).
type Appointment struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	VeterinarianID  string    `json:"veterinarian_id"`
	PetID           string    `json:"pet_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes"`
	Reason          string    `json:"reason"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateInput struct {
	VeterinarianID  string    `json:"veterinarian_id"`
	PetID           string    `json:"pet_id"`
	AppointmentDate time.Time `json:"appointment_date"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Reason          string    `json:"reason"`
	Notes           string    `json:"notes,omitempty"`
}

// TimeSlot es una franja de disponibilidad de un veterinario.
type TimeSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available bool   `json:"available"`
}

// VeterinarianListItem es la vista liviana para elegir veterinario al
// reservar.
type VeterinarianListItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	ClinicAddress string `json:"clinic_address,omitempty"`
}

// AvailabilityInput publica franjas de atención de un veterinario.
type AvailabilityInput struct {
	Date  string     `json:"date"` // YYYY-MM-DD
	Slots []TimeSlot `json:"slots"`
}
