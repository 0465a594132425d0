package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/bimatlas/core/internal/types"
)

// tracer is the OTel tracer for Cypher-level spans, installed behind the
// global delegating provider: a no-op until telemetry.Init runs.
var tracer = otel.Tracer("github.com/bimatlas/core/internal/store/graph")

// Client is the Graph Client (spec.md §4.4): a thin, parameter-safe wrapper
// around a Neo4j driver, scoped to one named property graph per deployment
// (GRAPH_NAME, default "bimatlas").
type Client struct {
	driver    neo4j.DriverWithContext
	graphName string
	labels    *labelCache
}

// New returns a Client bound to graphName (the Neo4j database name — one
// named graph per deployment, spec.md §6).
func New(driver neo4j.DriverWithContext, graphName string) *Client {
	return &Client{driver: driver, graphName: graphName, labels: newLabelCache()}
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: c.graphName,
		AccessMode:   mode,
	})
}

// ensureLabel lazily creates label if the cache hasn't seen it yet. Neo4j
// has no DDL for labels (any node can carry any label), so "creating" a
// label makes no round-trip at all: it validates the label text once and
// warms the cache — suppressing repeated validation rather than repeated
// server work, per spec.md §4.4.
func (c *Client) ensureLabel(label string) error {
	if c.labels.seen(label) {
		return nil
	}
	if err := ValidateLabel(label); err != nil {
		return err
	}
	c.labels.remember(label)
	return nil
}

// collect runs query in a transaction function of the given access mode and
// returns every record. Every write in this package returns at least one
// value (spec.md §4.4: "Every write must return at least one value to
// force the backend to materialize the effect"), so collect is shared by
// both reads and writes.
func (c *Client) collect(ctx context.Context, mode neo4j.AccessMode, query string, params map[string]any) ([]*neo4j.Record, error) {
	spanKind := trace.SpanKindClient
	opName := "graph.read"
	if mode == neo4j.AccessModeWrite {
		opName = "graph.write"
	}
	ctx, span := tracer.Start(ctx, opName,
		trace.WithSpanKind(spanKind),
		trace.WithAttributes(
			attribute.String("db.system", "neo4j"),
			attribute.String("db.name", c.graphName),
			attribute.String("db.statement", spanCypher(query)),
		),
	)
	defer span.End()

	session := c.session(ctx, mode)
	defer session.Close(ctx)

	run := func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	}

	var out any
	var err error
	if mode == neo4j.AccessModeWrite {
		out, err = session.ExecuteWrite(ctx, run)
	} else {
		out, err = session.ExecuteRead(ctx, run)
	}
	if err != nil {
		wrapped := types.WrapGraphError(fmt.Sprintf("cypher %s", query), err)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return nil, wrapped
	}
	records, _ := out.([]*neo4j.Record)
	span.SetAttributes(attribute.Int("db.rows_returned", len(records)))
	return records, nil
}

// spanCypher truncates a Cypher string to keep spans readable, same bound
// the relational store's spanSQL uses.
func spanCypher(q string) string {
	if len(q) > 300 {
		return q[:300] + "…"
	}
	return q
}
