// Package catalog implements the Project/Branch Catalog (spec.md §4.7): a
// thin service layer over the relational store's catalog tables, adding
// upload-side idempotency that the store layer itself does not need to know
// about.
package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/bimatlas/core/internal/store/relational"
	"github.com/bimatlas/core/internal/types"
)

// Service wraps a relational.Store with idempotency-token bookkeeping for
// upload requests (spec.md §4.7 names create_project/create_branch; this
// adds idempotency as an ambient concern any upload surface needs, not a new
// catalog operation).
type Service struct {
	rel *relational.Store

	mu     sync.Mutex
	tokens map[string]types.IngestionResult // idempotency token -> cached result
}

// New returns a Service over rel.
func New(rel *relational.Store) *Service {
	return &Service{rel: rel, tokens: make(map[string]types.IngestionResult)}
}

// CreateProject implements spec.md §4.7's create_project: atomically creates
// a project and its "main" branch.
func (s *Service) CreateProject(ctx context.Context, name string, description *string) (types.Project, types.Branch, error) {
	return s.rel.CreateProject(ctx, name, description)
}

// CreateBranch implements spec.md §4.7's create_branch. Branches always
// start empty.
func (s *Service) CreateBranch(ctx context.Context, projectID int64, name string) (types.Branch, error) {
	return s.rel.CreateBranch(ctx, projectID, name)
}

// DeleteProject cascades through branches, revisions, and products; graph
// reclamation is handled out-of-band by the graph sweeper (spec.md §9).
func (s *Service) DeleteProject(ctx context.Context, projectID int64) error {
	return s.rel.DeleteProject(ctx, projectID)
}

// NewIdempotencyToken mints an opaque token an upload client can attach to a
// request and retry safely: a repeated request carrying the same token
// returns the cached result of the first attempt instead of re-ingesting
// (spec.md §9, "idempotent retry" design note). The token itself carries no
// information; it is a pure correlation key.
func NewIdempotencyToken() string {
	return uuid.NewString()
}

// CachedResult returns the ingestion result previously recorded under token,
// if any.
func (s *Service) CachedResult(token string) (types.IngestionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tokens[token]
	return r, ok
}

// RecordResult associates token with result, for CachedResult to return on a
// retried request. Intended to be called once, immediately after a
// successful ingest that was submitted with token.
func (s *Service) RecordResult(token string, result types.IngestionResult) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = result
}
