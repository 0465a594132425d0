package catalog

import (
	"testing"

	"github.com/bimatlas/core/internal/types"
)

func TestIdempotencyTokenCaching(t *testing.T) {
	s := New(nil)

	token := NewIdempotencyToken()
	if token == "" {
		t.Fatal("NewIdempotencyToken returned empty string")
	}

	if _, ok := s.CachedResult(token); ok {
		t.Fatal("CachedResult found an entry before RecordResult was ever called")
	}

	want := types.IngestionResult{RevisionID: 42}
	s.RecordResult(token, want)

	got, ok := s.CachedResult(token)
	if !ok {
		t.Fatal("CachedResult found nothing after RecordResult")
	}
	if got.RevisionID != want.RevisionID {
		t.Errorf("CachedResult = %+v, want %+v", got, want)
	}
}

func TestRecordResultIgnoresEmptyToken(t *testing.T) {
	s := New(nil)
	s.RecordResult("", types.IngestionResult{RevisionID: 1})
	if _, ok := s.CachedResult(""); ok {
		t.Fatal("an empty idempotency token must never be cached")
	}
}

func TestTwoTokensAreIndependent(t *testing.T) {
	s := New(nil)
	a, b := NewIdempotencyToken(), NewIdempotencyToken()
	if a == b {
		t.Fatal("NewIdempotencyToken produced a collision on two consecutive calls")
	}
	s.RecordResult(a, types.IngestionResult{RevisionID: 1})
	if _, ok := s.CachedResult(b); ok {
		t.Fatal("CachedResult(b) must not see a's cached result")
	}
}
