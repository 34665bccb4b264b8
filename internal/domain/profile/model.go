package profile

// Role define los roles soportados.
// @Enum client, veterinarian, admin
type Role string

const (
	RoleClient       Role = "client"
	RoleVeterinarian Role = "veterinarian"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleVeterinarian, RoleAdmin:
		return true
	}
	return false
}

// WorkingHours es una franja de atención de un veterinario.
type WorkingHours struct {
	DayOfWeek string `json:"day_of_week"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// Profile es el perfil del usuario autenticado. A lo sumo uno cacheado
// por proceso (la clave implícita es la sesión vigente).
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role"`

	// Solo client
	Address string `json:"address,omitempty"`

	// Solo veterinarian
	ClinicAddress  string         `json:"clinic_address,omitempty"`
	AvailableHours []WorkingHours `json:"available_hours,omitempty"`
}
