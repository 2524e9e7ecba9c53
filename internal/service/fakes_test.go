package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
	"github.com/aryan0dhankhar/rentaladmin/internal/security"
	"github.com/aryan0dhankhar/rentaladmin/internal/security/audit"
)

var errBackend = errors.New("connection refused")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memIdentities resolves sessions from a fixed map
type memIdentities struct {
	sessions map[string]string // session -> user id
	calls    int
}

func (m *memIdentities) CurrentUser(_ context.Context, session string) (*domain.Identity, error) {
	m.calls++
	id, ok := m.sessions[session]
	if !ok {
		return nil, nil
	}
	return &domain.Identity{UserID: id, SessionID: session}, nil
}

type memProfiles struct {
	byID  map[string]*domain.Profile
	calls atomic.Int64
	err   error
}

func newMemProfiles(profiles ...*domain.Profile) *memProfiles {
	m := &memProfiles{byID: map[string]*domain.Profile{}}
	for _, p := range profiles {
		m.byID[p.ID] = p
	}
	return m
}

func (m *memProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProfiles) Create(_ context.Context, p *domain.Profile) error {
	m.calls.Add(1)
	if m.err != nil {
		return m.err
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	m.byID[p.ID] = p
	return nil
}

func (m *memProfiles) sorted(filter domain.ProfileFilter) []*domain.Profile {
	out := []*domain.Profile{}
	for _, p := range m.byID {
		if filter.Role != "" && p.Role != filter.Role {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (m *memProfiles) List(_ context.Context, filter domain.ProfileFilter, offset, limit int) ([]*domain.Profile, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return window(m.sorted(filter), offset, limit), nil
}

func (m *memProfiles) Count(_ context.Context, filter domain.ProfileFilter) (int, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return len(m.sorted(filter)), nil
}

func (m *memProfiles) ListCreatedSince(_ context.Context, since time.Time) ([]*domain.Profile, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := []*domain.Profile{}
	for _, p := range m.sorted(domain.ProfileFilter{}) {
		if !p.CreatedAt.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProfiles) UpdateRole(_ context.Context, id string, role domain.Role, at time.Time) error {
	m.calls.Add(1)
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Role, p.UpdatedAt = role, at
	return nil
}

func (m *memProfiles) UpdateStatus(_ context.Context, id string, status domain.UserStatus, at time.Time) error {
	m.calls.Add(1)
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status, p.UpdatedAt = status, at
	return nil
}

func (m *memProfiles) Delete(_ context.Context, id string) error {
	m.calls.Add(1)
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memProperties struct {
	byID   map[string]*domain.Property
	images []*domain.PropertyImage
	calls  atomic.Int64
	err    error
}

func newMemProperties() *memProperties {
	return &memProperties{byID: map[string]*domain.Property{}}
}

// seed adds n properties with status, each one minute newer than the last
func (m *memProperties) seed(n int, status domain.PropertyStatus, start time.Time) {
	base := len(m.byID)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%03d", base+i)
		m.byID[id] = &domain.Property{
			ID:        id,
			Title:     "Listing " + id,
			Status:    status,
			CreatedAt: start.Add(time.Duration(base+i) * time.Minute),
		}
	}
}

func (m *memProperties) sorted(status domain.PropertyStatus) []*domain.Property {
	out := []*domain.Property{}
	for _, p := range m.byID {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memProperties) List(_ context.Context, status domain.PropertyStatus, offset, limit int) ([]*domain.PropertyListItem, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var items []*domain.PropertyListItem
	for _, p := range window(m.sorted(status), offset, limit) {
		items = append(items, &domain.PropertyListItem{Property: *p})
	}
	return items, nil
}

func (m *memProperties) Count(_ context.Context, status domain.PropertyStatus) (int, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return len(m.sorted(status)), nil
}

func (m *memProperties) GetByID(_ context.Context, id string) (*domain.PropertyDetail, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	detail := &domain.PropertyDetail{Property: *p, Images: []domain.PropertyImage{}}
	for _, img := range m.images {
		if img.PropertyID == id {
			detail.Images = append(detail.Images, *img)
		}
	}
	return detail, nil
}

func (m *memProperties) Create(_ context.Context, p *domain.Property) error {
	m.calls.Add(1)
	if m.err != nil {
		return m.err
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	m.byID[p.ID] = p
	return nil
}

func (m *memProperties) AddImages(_ context.Context, images []*domain.PropertyImage) error {
	m.calls.Add(1)
	m.images = append(m.images, images...)
	return nil
}

func (m *memProperties) UpdateStatus(_ context.Context, ids []string, status domain.PropertyStatus, at time.Time) (int64, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			p.Status, p.UpdatedAt = status, at
			n++
		}
	}
	return n, nil
}

func (m *memProperties) Delete(_ context.Context, id string) error {
	m.calls.Add(1)
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memProperties) ListStatuses(_ context.Context) ([]domain.PropertyStatus, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.PropertyStatus
	for _, p := range m.sorted("") {
		out = append(out, p.Status)
	}
	return out, nil
}

func (m *memProperties) ExistingIDs(_ context.Context, ids []string) (map[string]bool, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	found := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

type memBookings struct {
	byID  map[string]*domain.Booking
	calls atomic.Int64
	err   error
}

func newMemBookings(bookings ...*domain.Booking) *memBookings {
	m := &memBookings{byID: map[string]*domain.Booking{}}
	for _, b := range bookings {
		m.byID[b.ID] = b
	}
	return m
}

func (m *memBookings) sorted(status domain.BookingStatus) []*domain.Booking {
	out := []*domain.Booking{}
	for _, b := range m.byID {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memBookings) List(_ context.Context, status domain.BookingStatus, offset, limit int) ([]*domain.BookingListItem, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var items []*domain.BookingListItem
	for _, b := range window(m.sorted(status), offset, limit) {
		items = append(items, &domain.BookingListItem{Booking: *b})
	}
	return items, nil
}

func (m *memBookings) Count(_ context.Context, status domain.BookingStatus) (int, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	return len(m.sorted(status)), nil
}

func (m *memBookings) GetByID(_ context.Context, id string) (*domain.BookingDetail, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.BookingDetail{Booking: *b, Messages: []domain.Message{}}, nil
}

func (m *memBookings) UpdateStatus(_ context.Context, ids []string, status domain.BookingStatus, at time.Time) (int64, error) {
	m.calls.Add(1)
	if m.err != nil {
		return 0, m.err
	}
	var n int64
	for _, id := range ids {
		if b, ok := m.byID[id]; ok {
			b.Status, b.UpdatedAt = status, at
			n++
		}
	}
	return n, nil
}

func (m *memBookings) ListSince(_ context.Context, since time.Time) ([]*domain.Booking, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	out := []*domain.Booking{}
	for _, b := range m.sorted("") {
		if !b.CreatedAt.Before(since) {
			out = append(out, b)
		}
	}
	return out, nil
}

type memActions struct {
	rows       []*domain.AdminAction
	recent     []*domain.ActivityItem
	err        error
	historyErr error
}

func (m *memActions) Append(_ context.Context, actions ...*domain.AdminAction) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, actions...)
	return nil
}

func (m *memActions) ListRecent(_ context.Context, limit int) ([]*domain.ActivityItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return window(m.recent, 0, limit), nil
}

func (m *memActions) ListByTarget(_ context.Context, target domain.TargetType, id string) ([]*domain.AdminAction, error) {
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	var out []*domain.AdminAction
	for _, a := range m.rows {
		if a.TargetType == target && a.TargetID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memActions) ofType(actionType string) int {
	n := 0
	for _, a := range m.rows {
		if a.ActionType == actionType {
			n++
		}
	}
	return n
}

// memTx runs fn directly and counts how many transactions were opened.
// commitErr simulates a failed commit after fn succeeded.
type memTx struct {
	opened    int
	commitErr error
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.opened++
	ctx, hooks, _ := domain.WithCommitHooks(ctx)
	if err := fn(ctx); err != nil {
		hooks.Discard()
		return err
	}
	if t.commitErr != nil {
		hooks.Discard()
		return t.commitErr
	}
	hooks.Run()
	return nil
}

// memStore fails uploads whose path ends with one of failSuffixes
type memStore struct {
	objects      map[string][]byte
	failSuffixes []string
}

func newMemStore(failSuffixes ...string) *memStore {
	return &memStore{objects: map[string][]byte{}, failSuffixes: failSuffixes}
}

func (s *memStore) Upload(_ context.Context, bucket, path string, data io.Reader, _ string) (string, error) {
	for _, suffix := range s.failSuffixes {
		if strings.HasSuffix(path, suffix) {
			return "", errBackend
		}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}
	s.objects[bucket+"/"+path] = buf.Bytes()
	return path, nil
}

func (s *memStore) PublicURL(bucket, path string) string {
	return "http://backend.test/storage/v1/object/public/" + bucket + "/" + path
}

func (s *memStore) Open(_ context.Context, bucket, path string) (io.ReadCloser, string, error) {
	data, ok := s.objects[bucket+"/"+path]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// harness wires services against in-memory fakes. Session "admin-token"
// belongs to an admin, "user-token" to a plain user.
type harness struct {
	identities *memIdentities
	profiles   *memProfiles
	properties *memProperties
	bookings   *memBookings
	actions    *memActions
	tx         *memTx
	store      *memStore
	gate       *security.Gate
	audit      *audit.Writer
}

func newHarness() *harness {
	h := &harness{
		identities: &memIdentities{sessions: map[string]string{
			"admin-token": "admin-1",
			"user-token":  "user-1",
		}},
		profiles: newMemProfiles(
			&domain.Profile{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin, Status: domain.UserStatusActive},
			&domain.Profile{ID: "user-1", Email: "user@example.com", Role: domain.RoleUser, Status: domain.UserStatusActive},
		),
		properties: newMemProperties(),
		bookings:   newMemBookings(),
		actions:    &memActions{},
		tx:         &memTx{},
		store:      newMemStore(),
	}
	h.gate = security.NewGate(h.identities, h.profiles, quietLogger())
	h.audit = audit.NewWriter(h.actions, quietLogger())
	return h
}

func (h *harness) propertyService() *PropertyService {
	return NewPropertyService(h.properties, h.tx, h.store, h.gate, h.audit, 100, quietLogger())
}

func (h *harness) bookingService() *BookingService {
	return NewBookingService(h.bookings, h.tx, h.gate, h.audit, 100, quietLogger())
}

func (h *harness) userService() *UserService {
	return NewUserService(h.profiles, h.tx, h.gate, h.audit, 100, quietLogger())
}

func (h *harness) analyticsService() *AnalyticsService {
	return NewAnalyticsService(h.properties, h.bookings, h.profiles, h.actions, h.gate, h.audit, quietLogger())
}

// backendCalls sums calls across every repository fake
func (h *harness) backendCalls() int {
	return h.identities.calls + int(h.profiles.calls.Load()+h.properties.calls.Load()+h.bookings.calls.Load())
}

func asAdmin() context.Context {
	return security.WithSession(context.Background(), "admin-token")
}

func asUser() context.Context {
	return security.WithSession(context.Background(), "user-token")
}
