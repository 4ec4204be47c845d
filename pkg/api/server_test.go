package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/magus-names/magus/pkg/generator"
	"github.com/magus-names/magus/pkg/models"
)

type stubAPI struct {
	lastReq     models.GenerationRequest
	lastCulture string
	lastGender  models.Gender
	invalidated string
	err         error
	up          bool
	panicOnGen  bool
}

func (s *stubAPI) GenerateNames(_ context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	if s.panicOnGen {
		panic("boom")
	}
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.GenerationResponse{
		RequestID:  "req-1",
		Names:      []models.GeneratedName{{Name: "Lyra", Syllables: []string{"ly", "ra"}, Score: 1, Culture: req.Culture}},
		Parameters: req,
	}, nil
}

func (s *stubAPI) RandomName(_ context.Context, culture string, gender models.Gender) (*models.GenerationResponse, error) {
	s.lastCulture, s.lastGender = culture, gender
	if s.err != nil {
		return nil, s.err
	}
	return &models.GenerationResponse{RequestID: "req-2", Names: []models.GeneratedName{{Name: "Brok", Culture: "dwarven"}}}, nil
}

func (s *stubAPI) ValidateName(_ context.Context, name, culture string) (*models.NameValidation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.NameValidation{Name: name, Culture: culture, Score: 0.9, Pronounceable: true}, nil
}

func (s *stubAPI) Cultures() []models.CultureInfo {
	return []models.CultureInfo{{Code: "elvish", Name: "Elvish"}, {Code: "dwarven", Name: "Dwarven"}}
}

func (s *stubAPI) InvalidateCulture(_ context.Context, code string) (int, error) {
	s.invalidated = code
	return 3, s.err
}

func (s *stubAPI) CacheStats(context.Context) models.CacheStats {
	return models.CacheStats{Backend: "memory", Hits: 4, Capacity: 100}
}

func (s *stubAPI) Ping(context.Context) bool { return s.up }

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestGenerate(t *testing.T) {
	stub := &stubAPI{}
	srv := New(":0", stub, nil, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/names/generate", `{"culture":"elvish","gender":"feminine","count":2,"min_score":0.7}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("expected a request id header")
	}
	resp := decode[models.GenerationResponse](t, rec)
	if len(resp.Names) != 1 || resp.Names[0].Name != "Lyra" {
		t.Errorf("unexpected names %+v", resp.Names)
	}
	if stub.lastReq.Count != 2 || stub.lastReq.Gender != models.GenderFeminine {
		t.Errorf("request not forwarded: %+v", stub.lastReq)
	}
	if stub.lastReq.MinScore == nil || *stub.lastReq.MinScore != 0.7 {
		t.Errorf("expected min score 0.7, got %v", stub.lastReq.MinScore)
	}
}

func TestGenerateBadJSON(t *testing.T) {
	srv := New(":0", &stubAPI{}, nil, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/names/generate", `{"culture":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Error.Code != http.StatusBadRequest || body.Error.Type != "magus_error" {
		t.Errorf("unexpected error body %+v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: count must be between 1 and 50", models.ErrInvalidRequest), http.StatusBadRequest},
		{"unknown culture", fmt.Errorf("%w: orcish", models.ErrUnknownCulture), http.StatusNotFound},
		{"configuration", &generator.ConfigError{Culture: "elvish", Reason: "empty pattern list"}, http.StatusUnprocessableEntity},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(":0", &stubAPI{err: tt.err}, nil, nil)
			rec := do(t, srv, http.MethodPost, "/api/v1/names/generate", `{"culture":"elvish"}`)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			body := decode[errorBody](t, rec)
			if body.Error.Message != tt.err.Error() {
				t.Errorf("expected message %q, got %q", tt.err.Error(), body.Error.Message)
			}
		})
	}
}

func TestRandom(t *testing.T) {
	stub := &stubAPI{}
	srv := New(":0", stub, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/names/random?culture=dwarf&gender=masculine", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.lastCulture != "dwarf" || stub.lastGender != models.GenderMasculine {
		t.Errorf("unexpected args %q %q", stub.lastCulture, stub.lastGender)
	}
	resp := decode[models.GenerationResponse](t, rec)
	if len(resp.Names) != 1 || resp.Names[0].Name != "Brok" {
		t.Errorf("unexpected names %+v", resp.Names)
	}
}

func TestValidate(t *testing.T) {
	srv := New(":0", &stubAPI{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/names/validate/Lyra?culture=elvish", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	v := decode[models.NameValidation](t, rec)
	if v.Name != "Lyra" || v.Culture != "elvish" || !v.Pronounceable {
		t.Errorf("unexpected validation %+v", v)
	}
}

func TestCultures(t *testing.T) {
	srv := New(":0", &stubAPI{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/names/cultures", "")
	infos := decode[[]models.CultureInfo](t, rec)
	if len(infos) != 2 || infos[0].Code != "elvish" {
		t.Errorf("unexpected cultures %+v", infos)
	}
}

func TestInvalidate(t *testing.T) {
	stub := &stubAPI{}
	srv := New(":0", stub, nil, nil)
	rec := do(t, srv, http.MethodDelete, "/api/v1/cache/cultures/elf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.invalidated != "elf" {
		t.Errorf("expected elf, got %q", stub.invalidated)
	}
	body := decode[map[string]any](t, rec)
	if body["invalidated"] != float64(3) {
		t.Errorf("unexpected body %v", body)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		up   bool
		want string
	}{
		{true, "ok"},
		{false, "degraded"},
	}
	for _, tt := range tests {
		srv := New(":0", &stubAPI{up: tt.up}, nil, nil)
		rec := do(t, srv, http.MethodGet, "/health", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		h := decode[healthResponse](t, rec)
		if h.Status != tt.want || h.CacheUp != tt.up {
			t.Errorf("expected status %s, got %+v", tt.want, h)
		}
		if h.Cultures != 2 || h.Cache.Backend != "memory" {
			t.Errorf("unexpected health body %+v", h)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("magus_up 1\n"))
	})
	srv := New(":0", &stubAPI{}, metrics, nil)
	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "magus_up 1") {
		t.Errorf("unexpected metrics response %d %q", rec.Code, rec.Body.String())
	}

	bare := New(":0", &stubAPI{}, nil, nil)
	if rec := do(t, bare, http.MethodGet, "/metrics", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without metrics, got %d", rec.Code)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	srv := New(":0", &stubAPI{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("expected abc-123, got %q", got)
	}
}

func TestRecoversFromPanic(t *testing.T) {
	srv := New(":0", &stubAPI{panicOnGen: true}, nil, nil)
	rec := do(t, srv, http.MethodPost, "/api/v1/names/generate", `{"culture":"elvish"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New(":0", &stubAPI{}, nil, nil)
	rec := do(t, srv, http.MethodGet, "/api/v1/names/generate", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New("", &stubAPI{up: true}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
