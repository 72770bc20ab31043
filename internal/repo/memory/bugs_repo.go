package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/google/uuid"
)

type BugsRepo struct {
	mu    sync.RWMutex
	items map[string]bug.BugReport
	clock *clock
}

func NewBugsRepo() *BugsRepo {
	return &BugsRepo{
		items: make(map[string]bug.BugReport),
		clock: newClock(),
	}
}

func (r *BugsRepo) List(_ context.Context) ([]bug.BugReport, error) {
	r.mu.RLock()
	out := make([]bug.BugReport, 0, len(r.items))
	for _, b := range r.items {
		out = append(out, clone(b))
	}
	r.mu.RUnlock()

	// newest first, id breaks ties
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *BugsRepo) GetByID(_ context.Context, id string) (bug.BugReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.items[id]
	if !ok {
		return bug.BugReport{}, bug.ErrNotFound
	}

	return clone(b), nil
}

func (r *BugsRepo) Create(_ context.Context, in bug.NewBug) (bug.BugReport, error) {
	userID := in.UserID

	b := bug.BugReport{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: cloneString(in.Description),
		Severity:    cloneString(in.Severity),
		Status:      in.Status,
		UserID:      &userID,
		CreatedAt:   r.clock.next(),
	}

	r.mu.Lock()
	r.items[b.ID] = b
	r.mu.Unlock()

	return clone(b), nil
}

func (r *BugsRepo) UpdateStatus(ctx context.Context, id string, status bug.Status) (bug.BugReport, error) {
	return r.Update(ctx, id, bug.Patch{Status: &status})
}

func (r *BugsRepo) Update(_ context.Context, id string, patch bug.Patch) (bug.BugReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.items[id]
	if !ok {
		return bug.BugReport{}, bug.ErrNotFound
	}

	if patch.Status != nil {
		b.Status = *patch.Status
	}
	switch {
	case patch.ClearSeverity:
		b.Severity = nil
	case patch.Severity != nil:
		b.Severity = cloneString(patch.Severity)
	}

	r.items[id] = b

	return clone(b), nil
}

func (r *BugsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return bug.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

// clone detaches the pointer fields from the stored row.
func clone(b bug.BugReport) bug.BugReport {
	b.Description = cloneString(b.Description)
	b.Severity = cloneString(b.Severity)
	b.UserID = cloneString(b.UserID)
	return b
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
