package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/aryan0dhankhar/rentaladmin/internal/domain"
)

var seedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPropertyListRequiresSessionBeforeAnyBackendCall(t *testing.T) {
	h := newHarness()
	h.properties.seed(3, domain.PropertyStatusPending, seedTime)

	_, err := h.propertyService().List(context.Background(), domain.ListParams{Page: 1, PageSize: 12})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if got := h.backendCalls(); got != 0 {
		t.Fatalf("expected no backend calls, got %d", got)
	}
}

func TestPropertyListForbiddenForPlainUser(t *testing.T) {
	h := newHarness()
	h.properties.seed(3, domain.PropertyStatusPending, seedTime)

	_, err := h.propertyService().List(asUser(), domain.ListParams{Page: 1, PageSize: 12})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if h.properties.calls.Load() != 0 {
		t.Fatalf("expected property repository untouched")
	}
}

func TestPropertyListCountsFilteredAndUnfiltered(t *testing.T) {
	h := newHarness()
	h.properties.seed(16, domain.PropertyStatusApproved, seedTime)
	h.properties.seed(9, domain.PropertyStatusPending, seedTime)

	page, err := h.propertyService().List(asAdmin(), domain.ListParams{Page: 1, PageSize: 12, Filter: "pending"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalCount != 25 || page.TotalPages != 3 {
		t.Fatalf("expected total 25 over 3 pages, got %d over %d", page.TotalCount, page.TotalPages)
	}
	if page.MatchingCount != 9 || page.MatchingPages != 1 {
		t.Fatalf("expected 9 matching over 1 page, got %d over %d", page.MatchingCount, page.MatchingPages)
	}
	if len(page.Items) != 9 {
		t.Fatalf("expected 9 items, got %d", len(page.Items))
	}
	for _, item := range page.Items {
		if item.Status != domain.PropertyStatusPending {
			t.Fatalf("unexpected status %q in filtered page", item.Status)
		}
	}
}

func TestPropertyListIsNewestFirstAndRepeatable(t *testing.T) {
	h := newHarness()
	h.properties.seed(5, domain.PropertyStatusApproved, seedTime)
	svc := h.propertyService()

	params := domain.ListParams{Page: 1, PageSize: 3, Filter: "all"}
	first, err := svc.List(asAdmin(), params)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := svc.List(asAdmin(), params)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(first.Items) != 3 || len(second.Items) != 3 {
		t.Fatalf("expected 3 items per page")
	}
	for i := range first.Items {
		if first.Items[i].ID != second.Items[i].ID {
			t.Fatalf("item %d differs between identical calls", i)
		}
		if i > 0 && first.Items[i].CreatedAt.After(first.Items[i-1].CreatedAt) {
			t.Fatalf("items not ordered newest first")
		}
	}
}

func TestPropertyListPageBeyondEndIsEmpty(t *testing.T) {
	h := newHarness()
	h.properties.seed(5, domain.PropertyStatusApproved, seedTime)

	page, err := h.propertyService().List(asAdmin(), domain.ListParams{Page: 4, PageSize: 12})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", page.Items)
	}
	if page.TotalCount != 5 {
		t.Fatalf("expected total 5, got %d", page.TotalCount)
	}
}

func TestPropertyListHugePageIsEmptyNotAFailure(t *testing.T) {
	h := newHarness()
	h.properties.seed(3, domain.PropertyStatusApproved, seedTime)

	page, err := h.propertyService().List(asAdmin(), domain.ListParams{Page: math.MaxInt/12 + 2, PageSize: 12})
	if err != nil {
		t.Fatalf("expected no error for a page past the end, got %v", err)
	}
	if len(page.Items) != 0 || page.TotalCount != 3 {
		t.Fatalf("expected empty page with total 3, got %d items total %d", len(page.Items), page.TotalCount)
	}
}

func TestPropertyListRejectsUnknownFilter(t *testing.T) {
	h := newHarness()

	_, err := h.propertyService().List(asAdmin(), domain.ListParams{Page: 1, PageSize: 12, Filter: "archived"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPropertyListHidesBackendCause(t *testing.T) {
	h := newHarness()
	h.properties.err = errBackend

	_, err := h.propertyService().List(asAdmin(), domain.ListParams{Page: 1, PageSize: 12})
	if !domain.IsBackendFailure(err) {
		t.Fatalf("expected backend failure, got %v", err)
	}
	if err.Error() != "failed to fetch properties" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestPropertyUpdateStatusRoundTripWithAudit(t *testing.T) {
	h := newHarness()
	h.properties.seed(1, domain.PropertyStatusPending, seedTime)
	svc := h.propertyService()

	notes := "looks good"
	if err := svc.UpdateStatus(asAdmin(), "p000", "approved", &notes); err != nil {
		t.Fatalf("update: %v", err)
	}

	detail, err := svc.Get(asAdmin(), "p000")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if detail.Status != domain.PropertyStatusApproved {
		t.Fatalf("expected approved, got %q", detail.Status)
	}

	if len(h.actions.rows) != 1 {
		t.Fatalf("expected one audit row, got %d", len(h.actions.rows))
	}
	a := h.actions.rows[0]
	if a.ActionType != "property_approved" || a.TargetID != "p000" || a.AdminID != "admin-1" {
		t.Fatalf("unexpected action %+v", a)
	}
	if a.Notes == nil || *a.Notes != notes {
		t.Fatalf("expected notes to be recorded")
	}
}

func TestPropertyUpdateStatusMissingWritesNoAudit(t *testing.T) {
	h := newHarness()

	err := h.propertyService().UpdateStatus(asAdmin(), "missing", "approved", nil)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(h.actions.rows) != 0 {
		t.Fatalf("expected no audit rows")
	}
}

func TestPropertyUpdateStatusRejectsUnknownStatus(t *testing.T) {
	h := newHarness()
	h.properties.seed(1, domain.PropertyStatusPending, seedTime)

	err := h.propertyService().UpdateStatus(asAdmin(), "p000", "published", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if h.tx.opened != 0 {
		t.Fatalf("expected no transaction")
	}
}

func TestPropertyBulkUpdateRecordsOneActionPerID(t *testing.T) {
	h := newHarness()
	h.properties.seed(5, domain.PropertyStatusPending, seedTime)

	ids := []string{"p000", "p001", "p002", "p003", "p004", "p001"}
	n, err := h.propertyService().BulkUpdateStatus(asAdmin(), ids, "approved")
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 rows changed, got %d", n)
	}
	if got := h.actions.ofType("property_approved_bulk"); got != 5 {
		t.Fatalf("expected 5 bulk actions, got %d", got)
	}
	for _, a := range h.actions.rows {
		if a.Notes == nil || *a.Notes != "Bulk operation" {
			t.Fatalf("expected bulk notes on %s", a.TargetID)
		}
	}
	if h.tx.opened != 1 {
		t.Fatalf("expected a single transaction, got %d", h.tx.opened)
	}
}

func TestPropertyBulkUpdateNeedsIDs(t *testing.T) {
	h := newHarness()

	_, err := h.propertyService().BulkUpdateStatus(asAdmin(), []string{"", ""}, "approved")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func validInput() CreatePropertyInput {
	return CreatePropertyInput{
		Title:         "Lake House",
		PropertyType:  "house",
		Bedrooms:      3,
		Bathrooms:     2,
		MaxGuests:     6,
		Address:       "1 Shore Rd",
		City:          "Austin",
		State:         "TX",
		Country:       "US",
		PricePerNight: 180,
	}
}

func upload(index int) ImageUpload {
	return ImageUpload{
		Index:       index,
		Filename:    "photo.JPG",
		ContentType: "image/jpeg",
		Size:        4,
		Data:        strings.NewReader("jpeg"),
	}
}

func TestPropertyCreateSkipsFailedImage(t *testing.T) {
	h := newHarness()
	h.store = newMemStore("_1.jpg")
	svc := h.propertyService()

	res, err := svc.Create(asAdmin(), validInput(), []ImageUpload{upload(0), upload(1), upload(2)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p := res.Property
	if p.Status != domain.PropertyStatusPending || p.OwnerID != "admin-1" {
		t.Fatalf("unexpected property %+v", p)
	}
	if len(res.Images) != 2 {
		t.Fatalf("expected 2 stored images, got %d", len(res.Images))
	}
	if res.Images[0].DisplayOrder != 0 || res.Images[1].DisplayOrder != 2 {
		t.Fatalf("expected display orders 0 and 2, got %d and %d", res.Images[0].DisplayOrder, res.Images[1].DisplayOrder)
	}
	if !res.Images[0].IsPrimary || res.Images[1].IsPrimary {
		t.Fatalf("expected only the first stored image to be primary")
	}
	if !strings.HasPrefix(res.Images[0].ImageURL, "http://backend.test/storage/v1/object/public/property-images/"+p.ID+"/") {
		t.Fatalf("unexpected image url %q", res.Images[0].ImageURL)
	}

	if len(h.actions.rows) != 1 || h.actions.rows[0].ActionType != domain.ActionPropertyCreated {
		t.Fatalf("expected one property_created action, got %+v", h.actions.rows)
	}
	if notes := h.actions.rows[0].Notes; notes == nil || *notes != "Property created by admin with 2 images" {
		t.Fatalf("unexpected notes %v", notes)
	}
}

func TestPropertyCreateAppliesDefaults(t *testing.T) {
	h := newHarness()

	res, err := h.propertyService().Create(asAdmin(), validInput(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	p := res.Property
	if p.CancellationPolicy != "moderate" || p.CheckInTime != "15:00" || p.CheckOutTime != "11:00" {
		t.Fatalf("unexpected policy defaults %+v", p)
	}
	if p.MinimumStay != 1 || p.MaximumStay != 30 {
		t.Fatalf("unexpected stay defaults %d..%d", p.MinimumStay, p.MaximumStay)
	}
	if len(res.Images) != 0 {
		t.Fatalf("expected no images")
	}
}

func TestPropertyCreateValidation(t *testing.T) {
	h := newHarness()
	svc := h.propertyService()

	in := validInput()
	in.Title = ""
	_, err := svc.Create(asAdmin(), in, nil)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}

	in = validInput()
	in.MinimumStay, in.MaximumStay = 7, 3
	if _, err := svc.Create(asAdmin(), in, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected stay validation error, got %v", err)
	}
	if len(h.store.objects) != 0 || h.tx.opened != 0 {
		t.Fatalf("expected nothing stored for invalid input")
	}
}

func TestPropertyDeleteRecordsAction(t *testing.T) {
	h := newHarness()
	h.properties.seed(1, domain.PropertyStatusRejected, seedTime)
	svc := h.propertyService()

	if err := svc.Delete(asAdmin(), "p000"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(asAdmin(), "p000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if h.actions.ofType("property_deleted") != 1 {
		t.Fatalf("expected property_deleted action")
	}
}
