package router

import (
	"context"

	"vet-clinic-manager/internal/cache"
	"vet-clinic-manager/internal/domain/profile"
	"vet-clinic-manager/internal/platform/logger"
	"vet-clinic-manager/internal/platform/metrics"
)

// SessionState es lo que el guard necesita saber de la sesión.
type SessionState interface {
	// Ready se cierra cuando terminó la inicialización de auth.
	Ready() <-chan struct{}
	Authenticated() bool
}

// ProfileSource es el cache de perfil visto desde el guard.
type ProfileSource interface {
	Current() *profile.Profile
	Loaded() bool
	Fetch(ctx context.Context, opts cache.Options) (*profile.Profile, error)
}

// Decision es el resultado de evaluar una navegación.
// Allow=false => redirigir a RedirectTo.
type Decision struct {
	Allow      bool
	RedirectTo string
}

func allow() Decision                 { return Decision{Allow: true} }
func redirect(target string) Decision { return Decision{RedirectTo: target} }

// Guard es la máquina de estados de autorización de rutas.
//
// Se evalúa una vez por intento de navegación, en orden estricto de
// precedencia; el primer redirect corta la evaluación (ningún chequeo
// posterior corre). El orden carga significado: un admin entrando a una
// ruta de clientes tiene que salir por el gate de rol, no confundirse
// con un caso de perfil faltante.
type Guard struct {
	sessions SessionState
	profiles ProfileSource
	log      logger.Logger

	Metrics *metrics.Metrics
}

func NewGuard(sessions SessionState, profiles ProfileSource, log logger.Logger) *Guard {
	if log == nil {
		log = logger.Nop()
	}
	return &Guard{
		sessions: sessions,
		profiles: profiles,
		log:      log,
	}
}

// Decide evalúa la navegación hacia route.
//
// Error solo cuando el contexto muere esperando la inicialización de
// auth; toda otra condición resuelve en allow o redirect.
func (g *Guard) Decide(ctx context.Context, route Route) (Decision, error) {
	// 1. Auth sin inicializar: suspender hasta el primer (y único) aviso
	// de listo, después re-evaluar desde el paso 2.
	select {
	case <-g.sessions.Ready():
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}

	authed := g.sessions.Authenticated()

	// 2. Ruta protegida, usuario sin sesión.
	if route.RequiresAuth && !authed {
		return g.done(route, redirect(PathLogin)), nil
	}

	// 3. Ruta solo-invitados, usuario con sesión.
	if route.RequiresGuest && authed {
		return g.done(route, redirect(PathDashboard)), nil
	}

	// 4. Autenticado nunca ve la landing de marketing.
	if authed && route.Path == PathLanding {
		return g.done(route, redirect(PathDashboard)), nil
	}

	// 5. Ruta protegida (que no sea el alta de perfil): garantizar perfil
	// cargado; si después del fetch no hay, mandar a crearlo.
	if route.RequiresAuth && authed && route.Path != PathSetupProfile {
		p := g.profiles.Current()
		if p == nil && !g.profiles.Loaded() {
			var err error
			p, err = g.profiles.Fetch(ctx, cache.Options{})
			if err != nil {
				// Lectura degradada: sin perfil confirmado, tratamos
				// como faltante (el alta re-intenta el fetch).
				g.log.Warn("guard: profile fetch failed", map[string]any{"err": err.Error()})
			}
		}
		if p == nil {
			return g.done(route, redirect(PathSetupProfile)), nil
		}
	}

	// 6. Gate de rol: corre recién con perfil confirmado.
	if len(route.AllowedRoles) > 0 {
		role := profile.Role("")
		if p := g.profiles.Current(); p != nil {
			role = p.Role
		}
		if !roleAllowed(role, route.AllowedRoles) {
			return g.done(route, redirect(PathDashboard)), nil
		}
	}

	// 7. Pasó todo.
	return g.done(route, allow()), nil
}

func (g *Guard) done(route Route, d Decision) Decision {
	if d.Allow {
		g.Metrics.Guard("allow", route.Path)
	} else {
		g.Metrics.Guard("redirect", d.RedirectTo)
		g.log.Debug("guard: redirect", map[string]any{
			"from": route.Path,
			"to":   d.RedirectTo,
		})
	}
	return d
}

func roleAllowed(role profile.Role, allowed []profile.Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
