package pets

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vet-clinic-manager/internal/auth"
	"vet-clinic-manager/internal/cache"
	"vet-clinic-manager/internal/platform/httpclient"
)

type fakeSessions struct{ id string }

func (f *fakeSessions) UserID() string { return f.id }

type fakeAPI struct {
	gets, posts, puts, deletes int

	onGet    func(path string, out any) error
	onPost   func(path string, in, out any) error
	onPut    func(path string, in, out any) error
	onDelete func(path string) error
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

func (f *fakeAPI) Put(ctx context.Context, path string, in, out any) error {
	f.puts++
	if f.onPut == nil {
		return nil
	}
	return f.onPut(path, in, out)
}

func (f *fakeAPI) Delete(ctx context.Context, path string) error {
	f.deletes++
	if f.onDelete == nil {
		return nil
	}
	return f.onDelete(path)
}

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

func listAPI(t *testing.T, list *[]Pet) *fakeAPI {
	return &fakeAPI{onGet: func(path string, out any) error {
		fill(t, out, *list)
		return nil
	}}
}

func TestFetch_TTLAndForce(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	list := []Pet{{ID: "p1", OwnerID: "u1", Name: "Milo"}}
	api := listAPI(t, &list)
	s := New(api, &fakeSessions{id: "u1"}, nil)
	now := base
	s.now = func() time.Time { return now }

	// 1) Primer fetch: red
	got, err := s.Fetch(context.Background(), cache.Options{})
	if err != nil || len(got) != 1 {
		t.Fatalf("first fetch: %v %v", got, err)
	}
	if api.gets != 1 {
		t.Fatalf("expected 1 GET, got %d", api.gets)
	}

	// 2) Dentro del TTL de 2m: cache
	now = base.Add(time.Minute)
	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("fresh fetch must serve cache, got %d GETs", api.gets)
	}

	// 3) Force: red aunque esté fresco
	if _, err := s.Fetch(context.Background(), cache.Options{Force: true}); err != nil {
		t.Fatalf("forced fetch: %v", err)
	}
	if api.gets != 2 {
		t.Fatalf("force must bypass cache, got %d GETs", api.gets)
	}

	// 4) Vencido el TTL: red de nuevo
	now = base.Add(10 * time.Minute)
	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("stale fetch: %v", err)
	}
	if api.gets != 3 {
		t.Fatalf("stale fetch must refetch, got %d GETs", api.gets)
	}
}

func TestFetch_IdentityChangeInvalidates(t *testing.T) {
	list := []Pet{{ID: "p1", Name: "Milo"}}
	api := listAPI(t, &list)
	sess := &fakeSessions{id: "u1"}
	s := New(api, sess, nil)

	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Cambia el usuario: el cache del anterior no vale, ni fresco
	sess.id = "u2"
	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("fetch as u2: %v", err)
	}
	if api.gets != 2 {
		t.Fatalf("owner change must force refetch, got %d GETs", api.gets)
	}
}

func TestFetch_404MeansNoPetsYet(t *testing.T) {
	api := &fakeAPI{onGet: func(path string, out any) error {
		return &httpclient.HTTPError{StatusCode: 404, Body: `{"error":"client not found"}`}
	}}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	got, err := s.Fetch(context.Background(), cache.Options{})
	if err != nil || len(got) != 0 {
		t.Fatalf("404 fetch: %v %v", got, err)
	}

	// Cacheado: no repite el GET
	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("empty state must be cached, got %d GETs", api.gets)
	}
}

func TestFetch_FailureReturnsPriorList(t *testing.T) {
	boom := errors.New("backend down")
	calls := 0
	api := &fakeAPI{onGet: func(path string, out any) error {
		calls++
		if calls == 1 {
			fill(t, out, []Pet{{ID: "p1", Name: "Milo"}})
			return nil
		}
		return boom
	}}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := s.Fetch(context.Background(), cache.Options{Force: true})
	if !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("failure must return prior cache, got %v", got)
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("error must be recorded, got %v", s.Err())
	}
}

func TestCreate_AppendsWithoutRefetch(t *testing.T) {
	list := []Pet{{ID: "p1", OwnerID: "u1", Name: "Milo"}}
	api := listAPI(t, &list)
	api.onPost = func(path string, in, out any) error {
		fill(t, out, Pet{ID: "p2", OwnerID: "u1", Name: "Luna"})
		return nil
	}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	created, err := s.Create(context.Background(), CreateInput{Name: "Luna", Type: "cat"})
	if err != nil || created.ID != "p2" {
		t.Fatalf("create: %+v err=%v", created, err)
	}

	// El alta parchea la lista local; ningún GET extra
	if s.Count() != 2 {
		t.Fatalf("expected 2 pets after create, got %d", s.Count())
	}
	if api.gets != 1 {
		t.Fatalf("create must not refetch, got %d GETs", api.gets)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := New(&fakeAPI{}, &fakeSessions{id: "u1"}, nil)
	if _, err := s.Create(context.Background(), CreateInput{Name: "", Type: "dog"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	s = New(&fakeAPI{}, &fakeSessions{id: ""}, nil)
	if _, err := s.Create(context.Background(), CreateInput{Name: "Milo", Type: "dog"}); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestUpdateAndDelete_PatchLocally(t *testing.T) {
	list := []Pet{{ID: "p1", OwnerID: "u1", Name: "Milo"}, {ID: "p2", OwnerID: "u1", Name: "Luna"}}
	api := listAPI(t, &list)
	api.onPut = func(path string, in, out any) error {
		fill(t, out, Pet{ID: "p1", OwnerID: "u1", Name: "Milo II"})
		return nil
	}
	s := New(api, &fakeSessions{id: "u1"}, nil)

	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// 1) Update reemplaza in situ
	name := "Milo II"
	if _, err := s.Update(context.Background(), "p1", UpdateInput{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	owned := s.Owned()
	if owned[0].Name != "Milo II" {
		t.Fatalf("update must patch local list, got %+v", owned)
	}

	// 2) Delete remueve sin refetch
	if err := s.Delete(context.Background(), "p2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Count() != 1 {
		t.Fatalf("expected 1 pet after delete, got %d", s.Count())
	}
	if api.gets != 1 {
		t.Fatalf("mutations must not refetch, got %d GETs", api.gets)
	}
}

func TestGet_PerPetTTL(t *testing.T) {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{onGet: func(path string, out any) error {
		fill(t, out, Pet{ID: "p9", Name: "Rocky"})
		return nil
	}}
	s := New(api, &fakeSessions{id: "vet-1"}, nil)
	now := base
	s.now = func() time.Time { return now }

	if _, err := s.Get(context.Background(), "p9", cache.Options{}); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Dentro del TTL: cache
	now = base.Add(time.Minute)
	if _, err := s.Get(context.Background(), "p9", cache.Options{}); err != nil {
		t.Fatalf("cached get: %v", err)
	}
	if api.gets != 1 {
		t.Fatalf("fresh per-pet lookup must not refetch, got %d", api.gets)
	}

	// Vencido: red
	now = base.Add(3 * time.Minute)
	if _, err := s.Get(context.Background(), "p9", cache.Options{}); err != nil {
		t.Fatalf("stale get: %v", err)
	}
	if api.gets != 2 {
		t.Fatalf("stale per-pet lookup must refetch, got %d", api.gets)
	}
}

type fakeIndex struct{ ids []string }

func (f fakeIndex) PetIDs() []string { return f.ids }

func TestPatients_SkipsFailingPets(t *testing.T) {
	api := &fakeAPI{onGet: func(path string, out any) error {
		if path == "/pets/bad" {
			return errors.New("boom")
		}
		fill(t, out, Pet{ID: "ok", Name: "Rocky"})
		return nil
	}}
	s := New(api, &fakeSessions{id: "vet-1"}, nil)

	got := s.Patients(context.Background(), fakeIndex{ids: []string{"ok", "bad", "ok"}})
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("expected the failing pet skipped and dupes collapsed, got %v", got)
	}
}

func TestClear_DropsEverything(t *testing.T) {
	list := []Pet{{ID: "p1", Name: "Milo"}}
	api := listAPI(t, &list)
	s := New(api, &fakeSessions{id: "u1"}, nil)

	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s.Clear()

	if s.Count() != 0 {
		t.Fatal("clear must drop the owned list")
	}
	if _, err := s.Fetch(context.Background(), cache.Options{}); err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if api.gets != 2 {
		t.Fatalf("cleared cache must refetch, got %d GETs", api.gets)
	}
}
