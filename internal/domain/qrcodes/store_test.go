package qrcodes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/platform/httpclient"
)

type fakeSessions struct{ id string }

func (f *fakeSessions) UserID() string { return f.id }

type fakeAPI struct {
	gets, posts int

	onGet  func(path string, out any) error
	onPost func(path string, in, out any) error
}

func (f *fakeAPI) Get(ctx context.Context, path string, out any) error {
	f.gets++
	if f.onGet == nil {
		return nil
	}
	return f.onGet(path, out)
}

func (f *fakeAPI) Post(ctx context.Context, path string, in, out any) error {
	f.posts++
	if f.onPost == nil {
		return nil
	}
	return f.onPost(path, in, out)
}

func (f *fakeAPI) Put(ctx context.Context, path string, in, out any) error { return nil }
func (f *fakeAPI) Delete(ctx context.Context, path string) error           { return nil }

func fill(t *testing.T, out, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestGetOrCreate_ExistingQRIsFetchedOnce(t *testing.T) {
	api := &fakeAPI{onGet: func(path string, out any) error {
		fill(t, out, QRCodeRecord{ID: "qr1", PetID: "p1", QRCodeData: "cGlj"})
		return nil
	}}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	// 1) Primer pedido: GET
	rec, err := s.GetOrCreateForPet(context.Background(), "p1")
	if err != nil || rec.ID != "qr1" {
		t.Fatalf("get: %+v err=%v", rec, err)
	}
	if api.gets != 1 || api.posts != 0 {
		t.Fatalf("expected 1 GET 0 POST, got %d/%d", api.gets, api.posts)
	}

	// 2) Segundo pedido: cache de sesión, sin TTL
	if _, err := s.GetOrCreateForPet(context.Background(), "p1"); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("qr must cache for the session, got %d GETs", api.gets)
	}
}

func TestGetOrCreate_404GeneratesQR(t *testing.T) {
	api := &fakeAPI{
		onGet: func(path string, out any) error {
			return &httpclient.HTTPError{StatusCode: 404, Body: `{"error":"qr not found"}`}
		},
		onPost: func(path string, in, out any) error {
			if path != "/pets/p1/qr-code" {
				t.Fatalf("unexpected generate path %q", path)
			}
			fill(t, out, QRCodeRecord{ID: "qr-new", PetID: "p1", QRCodeData: "cGlj"})
			return nil
		},
	}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	rec, err := s.GetOrCreateForPet(context.Background(), "p1")
	if err != nil || rec.ID != "qr-new" {
		t.Fatalf("generate: %+v err=%v", rec, err)
	}
	if api.gets != 1 || api.posts != 1 {
		t.Fatalf("expected GET then POST, got %d/%d", api.gets, api.posts)
	}

	// El generado queda cacheado
	if got, ok := s.Cached("p1"); !ok || got.ID != "qr-new" {
		t.Fatalf("generated qr must be cached, got %+v ok=%v", got, ok)
	}
}

func TestGetOrCreate_NonNotFoundErrorPropagates(t *testing.T) {
	boom := errors.New("backend down")
	api := &fakeAPI{onGet: func(path string, out any) error { return boom }}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	if _, err := s.GetOrCreateForPet(context.Background(), "p1"); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if api.posts != 0 {
		t.Fatal("generic failure must not attempt generation")
	}
	if _, ok := s.Cached("p1"); ok {
		t.Fatal("failure must not cache anything")
	}
}

func TestGetOrCreate_RequiresSession(t *testing.T) {
	api := &fakeAPI{}
	s := New(api, &fakeSessions{id: ""}, nil)

	if _, err := s.GetOrCreateForPet(context.Background(), "p1"); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if api.gets != 0 {
		t.Fatal("no-session lookup must not hit network")
	}
}

func TestImageDataURI(t *testing.T) {
	rec := QRCodeRecord{QRCodeData: "abc"}
	if got := rec.ImageDataURI(); got != "data:image/png;base64,abc" {
		t.Fatalf("unexpected data uri %q", got)
	}
}
