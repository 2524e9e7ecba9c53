package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/middleware"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/ratelimit"
	"github.com/aryan0dhankhar/rentaladmin/internal/service"
)

const testAPIKey = "anon-key"

type fakeIdentities struct{ calls int }

func (f *fakeIdentities) CurrentUser(_ context.Context, session string) (*domain.Identity, error) {
	f.calls++
	switch session {
	case "admin-token":
		return &domain.Identity{UserID: "admin-1"}, nil
	case "user-token":
		return &domain.Identity{UserID: "user-1"}, nil
	}
	return nil, nil
}

// fakeProfiles only answers GetByID; the handler tests never list users
type fakeProfiles struct {
	domain.ProfileRepository
}

func (fakeProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	switch id {
	case "admin-1":
		return &domain.Profile{ID: id, Role: domain.RoleAdmin}, nil
	case "user-1":
		return &domain.Profile{ID: id, Role: domain.RoleUser}, nil
	}
	return nil, domain.ErrNotFound
}

type fakeProperties struct {
	domain.PropertyRepository
	items   []*domain.PropertyListItem
	created []*domain.Property
	images  []*domain.PropertyImage
	calls   int
	err     error
}

func (f *fakeProperties) List(_ context.Context, _ domain.PropertyStatus, offset, limit int) ([]*domain.PropertyListItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.items) {
		return nil, nil
	}
	return f.items[offset:min(offset+limit, len(f.items))], nil
}

func (f *fakeProperties) Count(context.Context, domain.PropertyStatus) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return len(f.items), nil
}

func (f *fakeProperties) Create(_ context.Context, p *domain.Property) error {
	f.calls++
	f.created = append(f.created, p)
	return nil
}

func (f *fakeProperties) AddImages(_ context.Context, images []*domain.PropertyImage) error {
	f.images = append(f.images, images...)
	return nil
}

type fakeActions struct {
	domain.AdminActionRepository
	rows []*domain.AdminAction
}

func (f *fakeActions) Append(_ context.Context, actions ...*domain.AdminAction) error {
	f.rows = append(f.rows, actions...)
	return nil
}

type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type fakeStore struct{ uploads int }

func (s *fakeStore) Upload(_ context.Context, _, path string, data io.Reader, _ string) (string, error) {
	io.Copy(io.Discard, data)
	s.uploads++
	return path, nil
}

func (s *fakeStore) PublicURL(bucket, path string) string { return "http://backend.test/" + bucket + "/" + path }

func (s *fakeStore) Open(context.Context, string, string) (io.ReadCloser, string, error) {
	return nil, "", domain.ErrNotFound
}

type testServer struct {
	handler    http.Handler
	identities *fakeIdentities
	properties *fakeProperties
	actions    *fakeActions
	store      *fakeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ts := &testServer{
		identities: &fakeIdentities{},
		properties: &fakeProperties{},
		actions:    &fakeActions{},
		store:      &fakeStore{},
	}
	gate := security.NewGate(ts.identities, fakeProfiles{}, log)
	auditWriter := audit.NewWriter(ts.actions, log)
	limiter := ratelimit.NewLimiter(1000, time.Minute)
	t.Cleanup(limiter.Stop)

	routes := &Routes{
		Auth:       NewAuthHandler(nil, limiter, false, log),
		Properties: NewPropertyHandler(service.NewPropertyService(ts.properties, passTx{}, ts.store, gate, auditWriter, 100, log), 12, 8<<20, log),
		Bookings:   NewBookingHandler(service.NewBookingService(nil, passTx{}, gate, auditWriter, 100, log), 12, log),
		Users:      NewUserHandler(service.NewUserService(nil, passTx{}, gate, auditWriter, 100, log), 12, log),
		Analytics:  NewAnalyticsHandler(service.NewAnalyticsService(nil, nil, nil, nil, gate, auditWriter, log), log),
		Storage:    NewStorageHandler(ts.store, log),
		Health:     NewHealthHandler(map[string]CheckFunc{"postgres": func(context.Context) error { return nil }}, nil, log),
	}
	mux := http.NewServeMux()
	routes.Register(mux)

	ts.handler = middleware.Chain(mux,
		middleware.RequestID(log),
		middleware.APIKey(testAPIKey, log),
		middleware.Session(),
		middleware.AdminArea(gate, auditWriter, log),
	)
	return ts
}

func (ts *testServer) do(req *http.Request, session string) *httptest.ResponseRecorder {
	req.Header.Set("apikey", testAPIKey)
	if session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminAreaRedirectsAnonymousToLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/properties", nil), "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != middleware.LoginPath {
		t.Fatalf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if ts.identities.calls != 0 || ts.properties.calls != 0 {
		t.Fatalf("expected no backend calls, got identity=%d properties=%d", ts.identities.calls, ts.properties.calls)
	}
}

func TestAdminAreaRedirectsNonAdminToUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil), "user-token")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != middleware.UnauthorizedPath {
		t.Fatalf("expected redirect to unauthorized, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/properties", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without api key, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health to skip api key, got %d", rec.Code)
	}
}

func TestListPropertiesAsAdmin(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.properties.items = append(ts.properties.items, &domain.PropertyListItem{Property: domain.Property{ID: fmt.Sprintf("p%d", i)}})
	}

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/properties?page=1&page_size=2", nil), "admin-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var page struct {
		Items      []json.RawMessage `json:"items"`
		TotalCount int               `json:"total_count"`
		TotalPages int               `json:"total_pages"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Items) != 2 || page.TotalCount != 3 || page.TotalPages != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestListPropertiesDegradesOnBackendFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.properties.err = errors.New("connection reset")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/properties", nil), "admin-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected degraded 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items, got %s", rec.Body.String())
	}
}

func TestListPropertiesRejectsBadPage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/properties?page=zero", nil), "admin-token")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreatePropertyMultipart(t *testing.T) {
	ts := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{
		"title": "Cabin", "property_type": "cabin", "address": "2 Pine Rd", "city": "Bend",
		"state": "OR", "country": "US", "price_per_night": "95.50", "max_guests": "4",
		"bedrooms": "2", "bathrooms": "1", "amenities": "wifi, fireplace", "image_count": "3",
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, i := range []int{0, 2} {
		part, err := mw.CreateFormFile(fmt.Sprintf("image_%d", i), fmt.Sprintf("photo%d.jpg", i))
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		part.Write([]byte("jpegdata"))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/admin/properties", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := ts.do(req, "admin-token")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(ts.properties.created) != 1 {
		t.Fatalf("expected one property created")
	}
	p := ts.properties.created[0]
	if p.PricePerNight != 95.5 || len(p.Amenities) != 2 || p.Amenities[1] != "fireplace" {
		t.Fatalf("unexpected property %+v", p)
	}
	if ts.store.uploads != 2 || len(ts.properties.images) != 2 {
		t.Fatalf("expected 2 stored images, got uploads=%d rows=%d", ts.store.uploads, len(ts.properties.images))
	}
	if ts.properties.images[1].DisplayOrder != 2 {
		t.Fatalf("expected second image to keep index 2, got %d", ts.properties.images[1].DisplayOrder)
	}
}

func TestUpdateStatusValidation(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/admin/properties/p1/status", strings.NewReader(`{"status":"published"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req, "admin-token")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Field != "status" {
		t.Fatalf("expected status field error, got %+v", resp)
	}
}

func TestMessagesNotImplemented(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/admin/messages", nil), "admin-token")
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestStorageMissingObject(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/storage/v1/object/public/property-images/p1/a.jpg", nil), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestWriteErrorMapping(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{&domain.ValidationError{Field: "page", Message: "must be at least 1"}, http.StatusBadRequest},
		{&domain.NotFoundError{Entity: "property", ID: "p1"}, http.StatusNotFound},
		{&domain.OperationError{Op: "fetch", Entity: "properties", Err: errors.New("boom")}, http.StatusInternalServerError},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, log, c.err)
		if rec.Code != c.code {
			t.Fatalf("%v: expected %d, got %d", c.err, c.code, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "boom") {
			t.Fatalf("backend cause leaked: %s", rec.Body.String())
		}
	}
}

func TestBulkStatusRequiresFields(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/admin/properties/status", strings.NewReader(`{"status":"approved"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.do(req, "admin-token")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing ids, got %d", rec.Code)
	}
	if ts.properties.calls != 0 {
		t.Fatalf("expected no repository calls, got %d", ts.properties.calls)
	}
}
