//go:build integration

// This file only builds under `go test -tags=integration`: it needs a Docker
// daemon to start a real Neo4j container via testcontainers-go, which the
// plain unit/integration suite (SQLite-backed, no external services) must
// not depend on.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bimatlas/core/internal/store/graph"
	"github.com/bimatlas/core/internal/types"
)

// newNeo4jContainer starts a disposable Neo4j instance with auth disabled,
// grounded on the generic testcontainers.GenericContainer pattern (no
// project in the retrieval pack uses the container-backed test style, so
// this follows the upstream testcontainers-go README's own shape rather
// than a pack example).
func newNeo4jContainer(t *testing.T) (*graph.Client, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "neo4j:5-community",
		ExposedPorts: []string{"7687/tcp"},
		Env:          map[string]string{"NEO4J_AUTH": "none"},
		WaitingFor:   wait.ForLog("Bolt enabled").WithStartupTimeout(90 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting neo4j container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "7687")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	driver, err := neo4j.NewDriverWithContext(fmt.Sprintf("bolt://%s:%s", host, port.Port()), neo4j.NoAuth())
	if err != nil {
		t.Fatalf("building driver: %v", err)
	}

	client := graph.New(driver, "neo4j")
	cleanup := func() {
		_ = driver.Close(ctx)
		_ = container.Terminate(ctx)
	}
	return client, cleanup
}

// TestGraphClientRoundTrip exercises CreateNode/CreateEdge/CloseNode against
// a real Bolt connection, covering the Cypher parameter binding and the
// open-window (-1 sentinel) bookkeeping that params_test.go can only check
// at the query-string level.
func TestGraphClientRoundTrip(t *testing.T) {
	client, cleanup := newNeo4jContainer(t)
	defer cleanup()
	ctx := context.Background()

	const branchID = int64(1)
	wall := "GID4000000000000000000"
	building := "GID3000000000000000000"

	if err := client.CreateNode(ctx, branchID, types.GlobalID(building), "IfcBuilding", 1, "Building A"); err != nil {
		t.Fatalf("CreateNode(building): %v", err)
	}
	if err := client.CreateNode(ctx, branchID, types.GlobalID(wall), "IfcWall", 1, "Wall-01"); err != nil {
		t.Fatalf("CreateNode(wall): %v", err)
	}

	created, err := client.CreateEdge(ctx, branchID, types.GlobalID(building), types.GlobalID(wall), "IfcRelContainedInSpatialStructure", 1)
	if err != nil {
		t.Fatalf("CreateEdge: %v", err)
	}
	if !created {
		t.Fatal("CreateEdge must report created=true when both endpoints exist")
	}

	contained, err := client.ContainedElements(ctx, types.GlobalID(building), 1, branchID)
	if err != nil {
		t.Fatalf("ContainedElements: %v", err)
	}
	if len(contained) != 1 || string(contained[0]) != wall {
		t.Fatalf("ContainedElements = %v, want [%s]", contained, wall)
	}

	if err := client.CloseNode(ctx, branchID, types.GlobalID(wall), "IfcWall", 2); err != nil {
		t.Fatalf("CloseNode: %v", err)
	}
	containedAfterClose, err := client.ContainedElements(ctx, types.GlobalID(building), 2, branchID)
	if err != nil {
		t.Fatalf("ContainedElements after close: %v", err)
	}
	if len(containedAfterClose) != 0 {
		t.Fatalf("ContainedElements at rev 2 = %v, want empty (wall closed at rev 2)", containedAfterClose)
	}
}
