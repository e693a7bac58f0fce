// Package migrate creates and evolves the Postgres schema. Migrations
// are inspection-driven and idempotent: table creation is guarded by
// table-existence checks, column additions by column-existence and
// indexes by index-existence, so running Up repeatedly is a no-op.
// Down reverses the applied steps in opposite order.
//
// Schema evolution contract: columns are never renamed in place. Add
// the new column, backfill, then drop the old one in a later
// migration.
package migrate

import (
	"context"
	"fmt"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// Migration is one reversible schema step
type Migration struct {
	ID   string
	Up   func(ctx context.Context, database *db.DB) error
	Down func(ctx context.Context, database *db.DB) error
}

// All returns every migration in apply order
func All() []Migration {
	return []Migration{
		{ID: "001_core_tables", Up: upCoreTables, Down: downCoreTables},
		{ID: "002_artifact_knowledge", Up: upArtifactKnowledge, Down: downArtifactKnowledge},
		{ID: "003_signals", Up: upSignals, Down: downSignals},
		{ID: "004_indexes", Up: upIndexes, Down: downIndexes},
		{ID: "005_knowledge_provenance", Up: upKnowledgeProvenance, Down: downKnowledgeProvenance},
	}
}

// Up applies all migrations in order
func Up(ctx context.Context, database *db.DB, log *logger.Logger) error {
	for _, m := range All() {
		log.Info("applying migration", "id", m.ID)
		if err := m.Up(ctx, database); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.ID, err)
		}
	}
	return nil
}

// Down reverts all migrations in reverse order
func Down(ctx context.Context, database *db.DB, log *logger.Logger) error {
	all := All()
	for i := len(all) - 1; i >= 0; i-- {
		log.Info("reverting migration", "id", all[i].ID)
		if err := all[i].Down(ctx, database); err != nil {
			return fmt.Errorf("revert %s failed: %w", all[i].ID, err)
		}
	}
	return nil
}

// Inspection guards

func tableExists(ctx context.Context, database *db.DB, name string) (bool, error) {
	var exists bool
	err := database.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
		name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return exists, nil
}

func columnExists(ctx context.Context, database *db.DB, table, column string) (bool, error) {
	var exists bool
	err := database.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.columns WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2)`,
		table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

func indexExists(ctx context.Context, database *db.DB, name string) (bool, error) {
	var exists bool
	err := database.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND indexname = $1)`,
		name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", name, err)
	}
	return exists, nil
}

// Guarded operations

func createTable(ctx context.Context, database *db.DB, name, ddl string) error {
	exists, err := tableExists(ctx, database, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := database.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return nil
}

func dropTable(ctx context.Context, database *db.DB, name string) error {
	exists, err := tableExists(ctx, database, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := database.Exec(ctx, "DROP TABLE "+name); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

func addColumn(ctx context.Context, database *db.DB, table, column, definition string) error {
	exists, err := columnExists(ctx, database, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := database.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}

func dropColumn(ctx context.Context, database *db.DB, table, column string) error {
	exists, err := columnExists(ctx, database, table, column)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, column)
	if _, err := database.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to drop column %s.%s: %w", table, column, err)
	}
	return nil
}

func createIndex(ctx context.Context, database *db.DB, name, ddl string) error {
	exists, err := indexExists(ctx, database, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := database.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}

func dropIndex(ctx context.Context, database *db.DB, name string) error {
	exists, err := indexExists(ctx, database, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := database.Exec(ctx, "DROP INDEX "+name); err != nil {
		return fmt.Errorf("failed to drop index %s: %w", name, err)
	}
	return nil
}
