package bug

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusResolved Status = "Resolved"
)

// Any valid status may follow any other; only the literal is checked.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusResolved:
		return true
	}
	return false
}

var ErrNotFound = errors.New("bug not found")

type BugReport struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Severity    *string   `json:"severity"`
	Status      Status    `json:"status"`
	UserID      *string   `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// OwnedBy reports whether userID is the reporter.
func (b BugReport) OwnedBy(userID string) bool {
	return b.UserID != nil && *b.UserID == userID
}

type CreateBugRequest struct {
	Title       string  `json:"title" binding:"max=200"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	Severity    *string `json:"severity" binding:"omitempty,max=50"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

// MaxSeverityLen bounds severity labels in characters.
const MaxSeverityLen = 50

// UpdateBugRequest is the PUT body. An absent key leaves the column alone;
// an explicit null is a value the service has to judge.
type UpdateBugRequest struct {
	Status   Optional[Status] `json:"status"`
	Severity Optional[string] `json:"severity"`
}

// Optional tells an absent JSON key (Set false) apart from null (Set true,
// Value nil).
type Optional[T any] struct {
	Set   bool
	Value *T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON only runs for keys present in the body.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v

	return nil
}

// NewBug is the insert payload; the store assigns id and created_at.
type NewBug struct {
	Title       string
	Description *string
	Severity    *string
	Status      Status
	UserID      string
}

// Patch names the columns a partial update touches. ClearSeverity writes
// NULL and wins over Severity.
type Patch struct {
	Status        *Status
	Severity      *string
	ClearSeverity bool
}

func (p Patch) IsEmpty() bool {
	return p.Status == nil && p.Severity == nil && !p.ClearSeverity
}
