package conditions

import (
	"context"

	"github.com/wardlabs/ward/telemetry"
)

// Evaluator matches parsed conditions against event payloads, logging a
// warning for every unsupported operator it sees.
type Evaluator struct {
	logger *telemetry.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{logger: telemetry.NewLogger("condition-evaluator")}
}

// Evaluate reports whether the payload satisfies every field condition.
// An empty condition set always matches (wildcard trigger). Unknown
// operators evaluate to non-matching, never to matching.
func (e *Evaluator) Evaluate(ctx context.Context, raw map[string]any, payload map[string]any) bool {
	conds := Parse(raw)
	if len(conds) == 0 {
		return true
	}

	for _, op := range Unsupported(conds) {
		e.logger.WithContext(ctx).Warn().
			Str("operator", op).
			Msg("unsupported condition operator, treating as non-matching")
	}

	for _, cond := range conds {
		value := payload[cond.Field]
		for _, pred := range cond.Predicates {
			if !pred.Match(value) {
				return false
			}
		}
	}
	return true
}
