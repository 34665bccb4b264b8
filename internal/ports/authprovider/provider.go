package authprovider

import "context"

// Provider es el proveedor externo de autenticación (emisión de sesión,
// sign-up/sign-in/sign-out). La persistencia de la sesión es problema
// del proveedor, no nuestro.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (Session, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error

	// CurrentSession devuelve la sesión vigente si el proveedor tiene una
	// persistida; ok=false si no hay sesión.
	CurrentSession(ctx context.Context) (Session, bool, error)
}
