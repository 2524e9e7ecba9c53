package domain

import (
	"errors"
	"math"
	"testing"
)

func TestListParamsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      ListParams
		want    ListParams
		wantErr bool
	}{
		{"defaults pass", ListParams{Page: 1, PageSize: 12}, ListParams{Page: 1, PageSize: 12}, false},
		{"all means no filter", ListParams{Page: 2, PageSize: 10, Filter: "all"}, ListParams{Page: 2, PageSize: 10}, false},
		{"page size capped", ListParams{Page: 1, PageSize: 500}, ListParams{Page: 1, PageSize: 100}, false},
		{"page zero", ListParams{Page: 0, PageSize: 10}, ListParams{}, true},
		{"page size zero", ListParams{Page: 1, PageSize: 0}, ListParams{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize(100)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestNewPageCounts(t *testing.T) {
	p := NewPage([]int{1, 2, 3}, ListParams{Page: 1, PageSize: 12}, 25, 9)
	if p.TotalPages != 3 {
		t.Fatalf("expected 3 total pages, got %d", p.TotalPages)
	}
	if p.MatchingPages != 1 {
		t.Fatalf("expected 1 matching page, got %d", p.MatchingPages)
	}

	empty := NewPage[int](nil, ListParams{Page: 9, PageSize: 12}, 0, 0)
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Fatal("expected non-nil empty items")
	}
	if empty.TotalPages != 0 {
		t.Fatalf("expected 0 pages, got %d", empty.TotalPages)
	}
}

func TestStatusActionType(t *testing.T) {
	if got := StatusActionType(TargetProperty, "approved", true); got != "property_approved_bulk" {
		t.Fatalf("got %s", got)
	}
	if got := StatusActionType(TargetBooking, "cancelled", false); got != "booking_cancelled" {
		t.Fatalf("got %s", got)
	}
	if got := DeletedActionType(TargetUser); got != "user_deleted" {
		t.Fatalf("got %s", got)
	}
}

func TestOperationErrorMessageHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := &OperationError{Op: "update", Entity: "property", Err: cause}
	if err.Error() != "failed to update property" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be unwrappable")
	}
	if !IsBackendFailure(err) {
		t.Fatal("expected backend failure")
	}
}

func TestListParamsOffset(t *testing.T) {
	tests := []struct {
		name string
		in   ListParams
		want int
	}{
		{"first page", ListParams{Page: 1, PageSize: 12}, 0},
		{"third page", ListParams{Page: 3, PageSize: 12}, 24},
		{"last representable", ListParams{Page: math.MaxInt/12 + 1, PageSize: 12}, (math.MaxInt / 12) * 12},
		{"overflowing page saturates", ListParams{Page: math.MaxInt/12 + 2, PageSize: 12}, math.MaxInt},
		{"max page", ListParams{Page: math.MaxInt, PageSize: 100}, math.MaxInt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Offset(); got != tt.want {
				t.Fatalf("expected offset %d, got %d", tt.want, got)
			}
		})
	}
}
