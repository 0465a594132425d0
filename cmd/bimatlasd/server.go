package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	_ "modernc.org/sqlite"

	"github.com/bimatlas/core/internal/catalog"
	"github.com/bimatlas/core/internal/config"
	"github.com/bimatlas/core/internal/extractor"
	"github.com/bimatlas/core/internal/query"
	"github.com/bimatlas/core/internal/revision"
	"github.com/bimatlas/core/internal/store/graph"
	"github.com/bimatlas/core/internal/store/relational"
	"go.uber.org/zap"
)

// app bundles the wired components every subcommand needs, built once from
// resolved configuration.
type app struct {
	cfg       config.Config
	rel       *relational.Store
	graph     *graph.Client
	writer    *revision.Writer
	query     *query.Layer
	catalog   *catalog.Service
	log       *zap.Logger
	closeFunc func() error
}

func buildApp(ctx context.Context, configPath string, dialect relational.Dialect) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	var db *sql.DB
	switch dialect {
	case relational.DialectPostgres:
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPassword)
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
	default:
		db, err = sql.Open("sqlite", cfg.DBName+".sqlite")
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
	}

	rel := relational.Open(db, dialect)
	if err := rel.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	driver, err := neo4j.NewDriverWithContext(
		fmt.Sprintf("bolt://%s:7687", cfg.DBHost),
		neo4j.NoAuth(),
	)
	if err != nil {
		return nil, fmt.Errorf("building graph driver: %w", err)
	}
	graphClient := graph.New(driver, cfg.GraphName)

	ex := extractor.New(nil)
	if cacheDir, err := os.UserCacheDir(); err == nil {
		if meshCache, err := extractor.NewMeshCache(filepath.Join(cacheDir, "bimatlas", "mesh")); err != nil {
			log.Warn("mesh cache unavailable, tessellation results will not be cached", zap.Error(err))
		} else {
			ex = ex.WithMeshCache(meshCache)
		}
	}
	writer := revision.New(rel, graphClient, ex, log)
	queryLayer := query.New(rel, graphClient)
	catalogSvc := catalog.New(rel)

	return &app{
		cfg:     cfg,
		rel:     rel,
		graph:   graphClient,
		writer:  writer,
		query:   queryLayer,
		catalog: catalogSvc,
		log:     log,
		closeFunc: func() error {
			_ = driver.Close(ctx)
			return rel.Close()
		},
	}, nil
}
