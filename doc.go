// Package tabula infers typed tabular schemas from heterogeneous,
// semi-structured JSON records and keeps those schemas evolving safely.
//
// Records arrive grouped by source (a platform, a file, a collection). The
// engine flattens nested records into dotted field paths, discovers fields
// across every source, infers a semantic column type per field from its name
// and sampled values, and proposes an ordered column list with availability
// based required flags. Records are then populated into typed rows, scored
// for quality, and later column type changes are checked against the stored
// values before they are applied.
//
// # Packages
//
//   - pkg/schema: flattening, type inference, schema building, coercion,
//     population, evolution checks, column diffs and quality scoring
//   - pkg/models: records, tables, columns, ordered row data and reports
//   - pkg/store: memory, SQLite, MySQL and PostgreSQL persistence
//   - pkg/catalog: imports, column management and type changes over a store
//   - pkg/ingest: file, MongoDB, S3 and GCS record sources
//   - pkg/export: CSV and JSON rendering of a table
//   - pkg/config, pkg/logger, pkg/metrics, pkg/observability: ambient stack
//
// # Quick Start
//
// Infer a schema for a batch document and print it:
//
//	tabula infer --input batch.json
//
// Import it into a SQLite backed table and export the rows:
//
//	TABULA_STORE_DRIVER=sqlite TABULA_STORE_DSN=tabula.db tabula import --table posts --input batch.json
//	TABULA_STORE_DRIVER=sqlite TABULA_STORE_DSN=tabula.db tabula export posts --format csv
//
// From Go:
//
//	engine := schema.NewEngine(schema.EngineConfig{}, logger)
//	columns, report := engine.Builder.Build(batch)
//	rows := engine.Populator.Populate(batch, columns)
//	quality := engine.Quality.Score(batch, columns)
package tabula
