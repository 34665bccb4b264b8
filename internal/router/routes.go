// Package router define la superficie de navegación de la app y el guard
// de autorización que corre antes de cada transición.
package router

import (
	"net/http"

	"vet-clinic-manager/internal/domain/profile"
)

// Rutas con significado especial para el guard.
const (
	PathLanding      = "/"              // landing pública de marketing
	PathLogin        = "/login"         // destino de no-autenticados
	PathSignup       = "/signup"
	PathDashboard    = "/dashboard"     // landing default de autenticados
	PathSetupProfile = "/setup-profile" // alta de perfil post-registro
)

// Route declara una página y sus requisitos de acceso.
// AllowedRoles vacío = cualquier rol autenticado (si RequiresAuth).
type Route struct {
	Path          string
	Name          string
	RequiresAuth  bool
	RequiresGuest bool
	AllowedRoles  []profile.Role
	Handler       http.HandlerFunc
}
