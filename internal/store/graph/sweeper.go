package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Sweeper reclaims graph nodes and edges left behind for branches that have
// been deleted from the relational store (spec.md §9 Open Question: "project
// deletion" — the relational DELETE cascades synchronously, but the mirrored
// graph nodes/edges for that branch are reclaimed lazily by a background
// sweep rather than inline, so that DeleteProject stays a single
// constant-time relational transaction).
type Sweeper struct {
	client   *Client
	log      *zap.Logger
	interval time.Duration
}

// NewSweeper returns a Sweeper that runs every interval until its context is
// cancelled.
func NewSweeper(client *Client, log *zap.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{client: client, log: log, interval: interval}
}

// Run blocks, sweeping on a ticker until ctx is cancelled. Intended to be
// started as a background goroutine alongside the server (spec.md §5:
// "a background worker dispatched via go, not a pool").
func (s *Sweeper) Run(ctx context.Context, liveBranchIDs func(ctx context.Context) ([]int64, error)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx, liveBranchIDs); err != nil {
				s.log.Warn("graph sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context, liveBranchIDs func(ctx context.Context) ([]int64, error)) error {
	live, err := liveBranchIDs(ctx)
	if err != nil {
		return fmt.Errorf("list live branches: %w", err)
	}

	liveSet := make(map[int64]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}

	orphans, err := s.orphanedBranchIDs(ctx)
	if err != nil {
		return fmt.Errorf("list graph branch ids: %w", err)
	}

	for _, branchID := range orphans {
		if _, ok := liveSet[branchID]; ok {
			continue
		}
		if err := s.deleteBranch(ctx, branchID); err != nil {
			return fmt.Errorf("sweep branch %d: %w", branchID, err)
		}
		s.log.Info("swept orphaned graph branch", zap.Int64("branch_id", branchID))
	}
	return nil
}

func (s *Sweeper) orphanedBranchIDs(ctx context.Context) ([]int64, error) {
	records, err := s.client.collect(ctx, neo4j.AccessModeRead,
		`MATCH (n) RETURN DISTINCT n.branch_id AS branch_id`, nil)
	if err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(records))
	for _, rec := range records {
		v, ok := rec.Get("branch_id")
		if !ok || v == nil {
			continue
		}
		id, ok := v.(int64)
		if !ok {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// deleteBranch detaches and deletes every node (and thus every incident
// edge) for branchID, in bounded batches so a large orphaned branch does not
// hold a single long-running write transaction.
func (s *Sweeper) deleteBranch(ctx context.Context, branchID int64) error {
	const batchSize = 5000
	for {
		records, err := s.client.collect(ctx, neo4j.AccessModeWrite, `
			MATCH (n {branch_id: $branch_id})
			WITH n LIMIT $batch_size
			DETACH DELETE n
			RETURN count(n) AS deleted`, map[string]any{
			"branch_id":  branchID,
			"batch_size": batchSize,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		deleted, _ := records[0].Get("deleted")
		count, _ := deleted.(int64)
		if count == 0 {
			return nil
		}
	}
}
