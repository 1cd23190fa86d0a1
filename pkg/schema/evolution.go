package schema

import (
	"strings"

	"github.com/ajitpratap0/tabula/pkg/errors"
	log "github.com/ajitpratap0/tabula/pkg/logger"
	"github.com/ajitpratap0/tabula/pkg/metrics"
	"github.com/ajitpratap0/tabula/pkg/models"
	stringpool "github.com/ajitpratap0/tabula/pkg/strings"
	"go.uber.org/zap"
)

// Evolution messages.
const (
	MessageEmptyColumn = "Column is empty - any type allowed"
	MessageSafeChange  = "Type change is safe"
)

// EvolutionValidator checks whether a column type change is safe given the
// values already stored in the column. It is advisory and never mutates.
//
// By default every stored value is checked against the column's current
// type, which confirms the current type is consistent with the data rather
// than that the proposed type fits. Set CheckProposedType to also require
// every value to satisfy the proposed type.
type EvolutionValidator struct {
	logger *zap.Logger
	rules  *Rules

	CheckProposedType bool
}

// NewEvolutionValidator creates a new evolution validator
func NewEvolutionValidator(rules *Rules, logger *zap.Logger) *EvolutionValidator {
	return &EvolutionValidator{
		logger: log.OrNop(logger),
		rules:  orDefault(rules),
	}
}

// Validate checks values, the stored cells of one column, for a change from
// current to proposed. An invalid proposed type is a validation error.
func (v *EvolutionValidator) Validate(values []interface{}, current, proposed models.ColumnType) (models.EvolutionResult, error) {
	if !proposed.Valid() {
		return models.EvolutionResult{}, errors.New(errors.ErrorTypeValidation, "invalid column type").
			WithDetail("type", string(proposed))
	}

	texts := make([]string, 0, len(values))
	for _, val := range values {
		if val == nil {
			continue
		}
		if s := strings.TrimSpace(stringpool.ValueToString(val)); s != "" {
			texts = append(texts, s)
		}
	}

	if len(texts) == 0 {
		metrics.EvolutionChecks.WithLabelValues(metrics.OutcomeAllowed).Inc()
		return models.EvolutionResult{Allowed: true, Message: MessageEmptyColumn}, nil
	}

	var conflicts []string
	for _, s := range texts {
		if !v.rules.IsValidFor(s, current) ||
			(v.CheckProposedType && !v.rules.IsValidFor(s, proposed)) {
			conflicts = append(conflicts, s)
		}
	}

	if len(conflicts) > 0 {
		metrics.EvolutionChecks.WithLabelValues(metrics.OutcomeRejected).Inc()
		v.logger.Info("rejected column type change",
			zap.String("current", string(current)),
			zap.String("proposed", string(proposed)),
			zap.Int("conflicts", len(conflicts)))
		return models.EvolutionResult{
			Allowed:         false,
			Message:         stringpool.Sprintf("Cannot change to %s: %d values would be incompatible", proposed, len(conflicts)),
			SampleConflicts: head(conflicts, v.rules.ConflictSampleLimit),
		}, nil
	}

	metrics.EvolutionChecks.WithLabelValues(metrics.OutcomeAllowed).Inc()
	return models.EvolutionResult{Allowed: true, Message: MessageSafeChange}, nil
}
