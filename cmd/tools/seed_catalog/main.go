// Command seed_catalog loads a YAML opportunity catalog into Postgres.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/david/grant-assistant/internal/config"
	"github.com/david/grant-assistant/internal/db"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/source"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	catalogPath := flag.String("catalog", "", "catalog YAML (default: configured catalog, else the embedded one)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	lg := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	path := *catalogPath
	if path == "" {
		path = cfg.Catalog.Path
	}
	catalog, err := source.LoadCatalog(path, time.Now())
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, lg); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	store := db.NewStore(pool)
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Funder", "Deadline", "Result"})

	failed := 0
	for _, o := range catalog.All() {
		result := "upserted"
		if err := store.UpsertOpportunity(ctx, o); err != nil {
			lg.WithError(err).Error("upsert failed", map[string]interface{}{"id": o.ID})
			result = "failed"
			failed++
		}
		t.AppendRow(table.Row{o.ID, o.Funder, o.Deadline.Format("2006-01-02"), result})
	}
	t.Render()

	if failed > 0 {
		log.Fatalf("%d opportunities failed to load", failed)
	}
}
