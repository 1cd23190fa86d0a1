package schema

import (
	"go.uber.org/zap"

	log "github.com/ajitpratap0/tabula/pkg/logger"
)

// EngineConfig configures the components assembled by NewEngine.
type EngineConfig struct {
	// Delimiter separates flattened path segments. Empty selects ".".
	Delimiter string
	// Rules overrides the heuristic tables. Nil selects DefaultRules.
	Rules *Rules
	// StructuralRules overrides the flattener's rule set. Nil selects
	// DefaultStructuralRules.
	StructuralRules []StructuralRule
	// CheckProposedType makes the evolution validator also test values
	// against the proposed type.
	CheckProposedType bool
}

// Engine wires every inference component around one shared rule set and
// flattener.
type Engine struct {
	Rules      *Rules
	Flattener  *Flattener
	Inferencer *TypeInferencer
	Builder    *Builder
	Coercer    *Coercer
	Populator  *Populator
	Evolution  *EvolutionValidator
	Quality    *QualityScorer
}

// NewEngine creates an engine from cfg.
func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	logger = log.OrNop(logger).Named("schema")
	rules := orDefault(cfg.Rules)
	flattener := NewFlattener(cfg.Delimiter, cfg.StructuralRules)
	coercer := NewCoercer(rules, logger)

	evolution := NewEvolutionValidator(rules, logger)
	evolution.CheckProposedType = cfg.CheckProposedType

	return &Engine{
		Rules:      rules,
		Flattener:  flattener,
		Inferencer: NewTypeInferencer(rules, logger),
		Builder:    NewBuilder(rules, flattener, logger),
		Coercer:    coercer,
		Populator:  NewPopulator(rules, flattener, coercer, logger),
		Evolution:  evolution,
		Quality:    NewQualityScorer(rules, flattener, logger),
	}
}
