package domain

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// TargetType names the entity an admin action was applied to
type TargetType string

const (
	TargetProperty TargetType = "property"
	TargetBooking  TargetType = "booking"
	TargetUser     TargetType = "user"
)

// Action types that are not derived from a status value
const (
	ActionPropertyCreated = "property_created"
	ActionUserRoleUpdated = "user_role_updated"
)

// StatusActionType builds "{entity}_{status}" or "{entity}_{status}_bulk"
func StatusActionType(target TargetType, status string, bulk bool) string {
	t := string(target) + "_" + status
	if bulk {
		t += "_bulk"
	}
	return t
}

// DeletedActionType builds "{entity}_deleted"
func DeletedActionType(target TargetType) string {
	return string(target) + "_deleted"
}

// Details is the free-form JSON object stored with an admin action
type Details map[string]any

// Value implements driver.Valuer
func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan implements sql.Scanner
func (d *Details) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}
	return errors.New("unsupported type for details")
}

// AdminAction is an append-only audit record of a privileged mutation
type AdminAction struct {
	ID         string     `db:"id" json:"id"`
	AdminID    string     `db:"admin_id" json:"admin_id"`
	ActionType string     `db:"action_type" json:"action_type"`
	TargetType TargetType `db:"target_type" json:"target_type"`
	TargetID   string     `db:"target_id" json:"target_id"`
	Details    Details    `db:"details" json:"details,omitempty"`
	Notes      *string    `db:"notes" json:"notes"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ActivityItem is an admin action joined with the acting admin's name and email
type ActivityItem struct {
	AdminAction
	Admin ProfileSummary `db:"admin" json:"admin"`
}

// AdminActionRepository is append-only
type AdminActionRepository interface {
	Append(ctx context.Context, actions ...*AdminAction) error
	ListRecent(ctx context.Context, limit int) ([]*ActivityItem, error)
	ListByTarget(ctx context.Context, target TargetType, targetID string) ([]*AdminAction, error)
}
