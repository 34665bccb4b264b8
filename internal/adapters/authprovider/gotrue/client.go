// Package gotrue habla con el proveedor de autenticación externo
// (API estilo GoTrue: signup, password grant, logout).
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vet-clinic-manager/internal/platform/httpclient"
	"vet-clinic-manager/internal/ports/authprovider"
)

var (
	ErrNotConfigured = errors.New("auth provider not configured")
	ErrInvalidLogin  = errors.New("invalid credentials")
	ErrUpstream      = errors.New("auth provider upstream error")
)

// Config del cliente. BaseURL y APIKey vienen de env en cmd/app.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout HTTP. Default 5s.
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ authprovider.Provider = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (c *Client) SignUp(ctx context.Context, email, password string) (authprovider.Session, error) {
	return c.tokenCall(ctx, "/auth/v1/signup", email, password)
}

func (c *Client) SignIn(ctx context.Context, email, password string) (authprovider.Session, error) {
	return c.tokenCall(ctx, "/auth/v1/token?grant_type=password", email, password)
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	// El logout va firmado con el token del usuario, no con la api key.
	hc := &httpclient.Client{HTTP: c.http, Tokens: bearerSource{token: accessToken}}
	err := hc.DoJSON(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", nil, nil)
	if err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) {
			// El proveedor puede responder 401 para tokens ya vencidos;
			// para nosotros el sign-out igual se concretó.
			if he.StatusCode == http.StatusUnauthorized {
				return nil
			}
			return fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}

// CurrentSession: este adapter no persiste sesión local; el proceso arranca
// sin sesión y el usuario firma vía SignIn. ok=false siempre.
func (c *Client) CurrentSession(ctx context.Context) (authprovider.Session, bool, error) {
	return authprovider.Session{}, false, nil
}

func (c *Client) tokenCall(ctx context.Context, path, email, password string) (authprovider.Session, error) {
	if !c.IsConfigured() {
		return authprovider.Session{}, ErrNotConfigured
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return authprovider.Session{}, ErrInvalidLogin
	}

	in := map[string]string{"email": email, "password": password}
	var out tokenResponse

	hc := c.apiClient()
	if err := hc.DoJSON(ctx, http.MethodPost, c.baseURL+path, in, &out); err != nil {
		var he *httpclient.HTTPError
		if errors.As(err, &he) {
			if he.StatusCode == http.StatusBadRequest || he.StatusCode == http.StatusUnauthorized {
				return authprovider.Session{}, ErrInvalidLogin
			}
			return authprovider.Session{}, fmt.Errorf("%w: status=%d", ErrUpstream, he.StatusCode)
		}
		return authprovider.Session{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if strings.TrimSpace(out.AccessToken) == "" {
		return authprovider.Session{}, fmt.Errorf("%w: response missing access_token", ErrUpstream)
	}

	sess := authprovider.Session{
		AccessToken: out.AccessToken,
		UserID:      strings.TrimSpace(out.User.ID),
		Email:       strings.TrimSpace(out.User.Email),
	}
	if out.ExpiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}

	// Algunos despliegues omiten el objeto user en el grant; en ese caso
	// completamos identidad/expiry desde los claims del token.
	fillFromClaims(&sess)

	if sess.UserID == "" {
		return authprovider.Session{}, fmt.Errorf("%w: cannot determine user id", ErrUpstream)
	}
	return sess, nil
}

// fillFromClaims decodifica el access token SIN verificar firma (la firma la
// valida el backend; acá solo necesitamos sub/exp/email para la sesión).
func fillFromClaims(sess *authprovider.Session) {
	if sess.UserID != "" && !sess.ExpiresAt.IsZero() {
		return
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(sess.AccessToken, claims); err != nil {
		return
	}

	if sess.UserID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			sess.UserID = sub
		}
	}
	if sess.ExpiresAt.IsZero() {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			sess.ExpiresAt = exp.Time
		}
	}
	if sess.Email == "" {
		if v, ok := claims["email"].(string); ok {
			sess.Email = v
		}
	}
}

// apiClient arma un httpclient con la api key del proveedor.
func (c *Client) apiClient() *httpclient.Client {
	return &httpclient.Client{
		HTTP:   c.http,
		Tokens: apiKeySource{key: c.apiKey},
	}
}

// apiKeySource manda la api key pública como bearer (convención GoTrue:
// vale tanto "apikey" como Authorization: Bearer <anon key>).
type apiKeySource struct{ key string }

func (s apiKeySource) Token(ctx context.Context) (string, error) {
	return s.key, nil
}

type bearerSource struct{ token string }

func (s bearerSource) Token(ctx context.Context) (string, error) {
	return s.token, nil
}
