// Package auth mantiene la sesión vigente del proceso.
//
// El Holder es el único dueño del estado de sesión: lo mutan solo los
// callbacks del proveedor externo (vía SignIn/SignUp/SignOut). El resto de
// los stores lee la sesión y se suscribe a cambios, nunca la modifica.
package auth

import (
	"context"
	"errors"
	"sync"

	"vet-clinic-manager/internal/platform/logger"
	"vet-clinic-manager/internal/ports/authprovider"
)

// ErrNoSession: no hay token de autenticación vigente.
// Las lecturas lo registran como error local; las escrituras lo devuelven.
var ErrNoSession = errors.New("no authentication token")

type Event string

const (
	EventSignedIn  Event = "signed_in"
	EventSignedOut Event = "signed_out"
)

// Change es la notificación que publica el Holder cuando cambia la sesión.
// Session es copia; vacía cuando Event es signed_out.
type Change struct {
	Event   Event
	Session authprovider.Session
}

type Holder struct {
	provider authprovider.Provider
	log      logger.Logger

	mu      sync.RWMutex
	session *authprovider.Session
	loading bool

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int

	ready     chan struct{}
	readyOnce sync.Once
}

func NewHolder(provider authprovider.Provider, log logger.Logger) *Holder {
	if log == nil {
		log = logger.Nop()
	}
	return &Holder{
		provider: provider,
		log:      log,
		loading:  true,
		subs:     map[int]func(Change){},
		ready:    make(chan struct{}),
	}
}

// Initialize consulta la sesión persistida por el proveedor y levanta la
// bandera de listo. Un error del proveedor NO deja el holder colgado:
// igual queda listo, sin sesión (el guard redirige a login).
func (h *Holder) Initialize(ctx context.Context) error {
	sess, ok, err := h.provider.CurrentSession(ctx)

	h.mu.Lock()
	if err == nil && ok {
		s := sess
		h.session = &s
	}
	h.loading = false
	h.mu.Unlock()

	h.readyOnce.Do(func() { close(h.ready) })

	if err != nil {
		h.log.Error("auth initialize failed", map[string]any{"err": err.Error()})
		return err
	}
	return nil
}

// Ready se cierra exactamente una vez, cuando terminó la inicialización.
// Es la suspensión one-shot que usa el route guard: espera el canal y
// re-evalúa; no vuelve a bloquearse por cambios posteriores.
func (h *Holder) Ready() <-chan struct{} {
	return h.ready
}

// Loading reporta si la inicialización sigue pendiente.
func (h *Holder) Loading() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.loading
}

func (h *Holder) Authenticated() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session != nil
}

// Session devuelve copia de la sesión vigente.
func (h *Holder) Session() (authprovider.Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return authprovider.Session{}, false
	}
	return *h.session, true
}

// UserID del usuario autenticado, o "" si no hay sesión.
func (h *Holder) UserID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil {
		return ""
	}
	return h.session.UserID
}

// Token implementa httpclient.TokenSource: precondición de todo request
// autorizado. Sin sesión => ErrNoSession, sin tocar la red.
func (h *Holder) Token(ctx context.Context) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.session == nil || h.session.AccessToken == "" {
		return "", ErrNoSession
	}
	return h.session.AccessToken, nil
}

// Subscribe registra un callback de cambios de sesión y devuelve el
// cancel. Los callbacks corren sincrónicos en el goroutine que dispara
// el cambio; deben ser baratos.
func (h *Holder) Subscribe(fn func(Change)) (cancel func()) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn

	return func() {
		h.subsMu.Lock()
		defer h.subsMu.Unlock()
		delete(h.subs, id)
	}
}

func (h *Holder) SignUp(ctx context.Context, email, password string) error {
	sess, err := h.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	h.setSession(sess)
	return nil
}

func (h *Holder) SignIn(ctx context.Context, email, password string) error {
	sess, err := h.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	h.setSession(sess)
	return nil
}

// SignOut avisa al proveedor y, si acepta, limpia la sesión local y
// notifica signed_out (los stores que cachean por usuario se limpian ahí).
func (h *Holder) SignOut(ctx context.Context) error {
	h.mu.RLock()
	token := ""
	if h.session != nil {
		token = h.session.AccessToken
	}
	h.mu.RUnlock()

	if token == "" {
		return ErrNoSession
	}

	if err := h.provider.SignOut(ctx, token); err != nil {
		return err
	}

	h.mu.Lock()
	h.session = nil
	h.mu.Unlock()

	h.notify(Change{Event: EventSignedOut})
	return nil
}

func (h *Holder) setSession(sess authprovider.Session) {
	h.mu.Lock()
	s := sess
	h.session = &s
	h.mu.Unlock()

	h.notify(Change{Event: EventSignedIn, Session: sess})
}

func (h *Holder) notify(ch Change) {
	h.subsMu.Lock()
	fns := make([]func(Change), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subsMu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}
