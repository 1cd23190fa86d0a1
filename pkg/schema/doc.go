// Package schema infers tabular schemas from heterogeneous nested records
// and converts those records into typed rows.
//
// The pipeline runs leaves first: a Flattener turns each record into a flat
// path→value map, a TypeInferencer picks a semantic type per field, the
// Builder ranks column candidates by availability across sources, the
// Coercer converts raw values into declared types, and the Populator
// produces row data for a committed column list. The EvolutionValidator
// and QualityScorer check stored data and batches against a schema.
//
// All heuristics (keyword lists, thresholds, per-source field aliases and
// descriptions) live in Rules and can be overlaid from YAML with LoadRules.
//
// Every component is synchronous and free of shared mutable state. Callers
// that change column types must serialise validation and commit per table.
package schema
