package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/geocoder89/bugzapp/internal/apperr"
	"github.com/geocoder89/bugzapp/internal/cache"
	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/geocoder89/bugzapp/internal/identity"
	"github.com/geocoder89/bugzapp/internal/observability"
)

const (
	msgBugNotFound = "Bug not found"
	msgForbidden   = "Not allowed to modify this bug"
)

type BugStore interface {
	List(ctx context.Context) ([]bug.BugReport, error)
	GetByID(ctx context.Context, id string) (bug.BugReport, error)
	Create(ctx context.Context, in bug.NewBug) (bug.BugReport, error)
	UpdateStatus(ctx context.Context, id string, status bug.Status) (bug.BugReport, error)
	Update(ctx context.Context, id string, patch bug.Patch) (bug.BugReport, error)
	Delete(ctx context.Context, id string) error
}

type BugService struct {
	bugs   BugStore
	cache  cache.Store
	policy Policy
	prom   *observability.Prom

	// bumped by every invalidation; a read that straddles a write skips
	// filling the cache
	gen atomic.Uint64
}

type BugOption func(*BugService)

// WithCache puts a read-through cache in front of List and Get.
func WithCache(c cache.Store) BugOption {
	return func(s *BugService) {
		s.cache = c
	}
}

func WithPolicy(p Policy) BugOption {
	return func(s *BugService) {
		s.policy = p
	}
}

func WithMetrics(p *observability.Prom) BugOption {
	return func(s *BugService) {
		s.prom = p
	}
}

func NewBugService(bugs BugStore, opts ...BugOption) *BugService {
	s := &BugService{
		bugs:   bugs,
		policy: PolicyToken,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *BugService) Policy() Policy {
	return s.policy
}

func (s *BugService) List(ctx context.Context) ([]bug.BugReport, error) {
	var cached []bug.BugReport
	if s.cacheGet(ctx, cache.BugListKey(), &cached) {
		return cached, nil
	}

	gen := s.gen.Load()

	items, err := s.bugs.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.cacheSet(ctx, cache.BugListKey(), items, gen)

	return items, nil
}

func (s *BugService) Get(ctx context.Context, id string) (bug.BugReport, error) {
	var cached bug.BugReport
	if s.cacheGet(ctx, cache.BugKey(id), &cached) {
		return cached, nil
	}

	gen := s.gen.Load()

	b, err := s.load(ctx, id)
	if err != nil {
		return bug.BugReport{}, err
	}

	s.cacheSet(ctx, cache.BugKey(id), b, gen)

	return b, nil
}

func (s *BugService) Create(ctx context.Context, req bug.CreateBugRequest, who identity.Identity) (bug.BugReport, error) {
	if who.ID == "" {
		return bug.BugReport{}, apperr.Unauthorized("No token")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return bug.BugReport{}, apperr.Validation("Bug title is required")
	}

	b, err := s.bugs.Create(ctx, bug.NewBug{
		Title:       title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      bug.StatusPending,
		UserID:      who.ID,
	})
	s.prom.IncBugMutation("create", err)

	if err != nil {
		return bug.BugReport{}, apperr.Internal(err)
	}

	s.invalidate(ctx, "")

	return b, nil
}

func (s *BugService) UpdateStatus(ctx context.Context, id string, status bug.Status, who identity.Identity) (bug.BugReport, error) {
	if !status.IsValid() {
		return bug.BugReport{}, apperr.Validation("Invalid status")
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return bug.BugReport{}, err
	}

	if !canModify(who, current) {
		return bug.BugReport{}, apperr.Forbidden(msgForbidden)
	}

	// the row can vanish between the ownership read and the write
	b, err := s.bugs.UpdateStatus(ctx, id, status)
	s.prom.IncBugMutation("update_status", err)

	if err != nil {
		return bug.BugReport{}, translate(err)
	}

	s.invalidate(ctx, id)

	return b, nil
}

func (s *BugService) UpdatePartial(ctx context.Context, id string, req bug.UpdateBugRequest, who identity.Identity) (bug.BugReport, error) {
	// null is not a status; only an absent key leaves it alone
	if req.Status.Set && (req.Status.Value == nil || !req.Status.Value.IsValid()) {
		return bug.BugReport{}, apperr.Validation("Invalid status value")
	}

	if sev := req.Severity.Value; sev != nil && utf8.RuneCountInString(*sev) > bug.MaxSeverityLen {
		return bug.BugReport{}, apperr.Validation(fmt.Sprintf("severity must be at most %d characters", bug.MaxSeverityLen))
	}

	patch := bug.Patch{
		Status:        req.Status.Value,
		Severity:      req.Severity.Value,
		ClearSeverity: req.Severity.Set && req.Severity.Value == nil,
	}
	if patch.IsEmpty() {
		return bug.BugReport{}, apperr.Validation("Nothing to update")
	}

	if err := s.authorize(ctx, id, who); err != nil {
		return bug.BugReport{}, err
	}

	b, err := s.bugs.Update(ctx, id, patch)
	s.prom.IncBugMutation("update", err)

	if err != nil {
		return bug.BugReport{}, translate(err)
	}

	s.invalidate(ctx, id)

	return b, nil
}

func (s *BugService) Delete(ctx context.Context, id string, who identity.Identity) error {
	if err := s.authorize(ctx, id, who); err != nil {
		return err
	}

	err := s.bugs.Delete(ctx, id)
	s.prom.IncBugMutation("delete", err)

	if err != nil {
		return translate(err)
	}

	s.invalidate(ctx, id)

	return nil
}

// authorize applies the configured policy to update and delete.
func (s *BugService) authorize(ctx context.Context, id string, who identity.Identity) error {
	if s.policy != PolicyOwnerOrAdmin {
		return nil
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if !canModify(who, current) {
		return apperr.Forbidden(msgForbidden)
	}

	return nil
}

func (s *BugService) load(ctx context.Context, id string) (bug.BugReport, error) {
	b, err := s.bugs.GetByID(ctx, id)
	if err != nil {
		return bug.BugReport{}, translate(err)
	}

	return b, nil
}

func translate(err error) error {
	if errors.Is(err, bug.ErrNotFound) {
		return apperr.NotFound(msgBugNotFound, err)
	}
	return apperr.Internal(err)
}

func (s *BugService) cacheGet(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}

	raw, ok := s.cache.Get(ctx, key)
	if ok && json.Unmarshal(raw, out) == nil {
		s.prom.IncCache(true)
		return true
	}

	s.prom.IncCache(false)
	return false
}

// cacheSet stores v unless a write invalidated the cache after gen was read.
func (s *BugService) cacheSet(ctx context.Context, key string, v any, gen uint64) {
	if s.cache == nil || s.gen.Load() != gen {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return
	}

	s.cache.Set(ctx, key, raw)
}

// invalidate drops the list and, when id is set, that bug's entry.
func (s *BugService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}

	s.gen.Add(1)

	keys := []string{cache.BugListKey()}
	if id != "" {
		keys = append(keys, cache.BugKey(id))
	}

	s.cache.Delete(ctx, keys...)
}
