// Package extractor turns fetched regulatory documents into scored clause drafts.
//
// A deterministic rule-based pass always runs. An optional model pass can add clauses
// the heuristics do not know about; its failures are logged and otherwise ignored.
package extractor

import (
	"context"
	"log/slog"
	"math"

	"permitpulse/internal/rules"
	"permitpulse/pkg/platform/circuit"
	pstrings "permitpulse/pkg/platform/strings"
)

//go:generate mockgen -source=extractor.go -destination=mocks/mocks.go -package=mocks ModelExtractor

const (
	TraceRuleBased = "rule_based"
	TraceModel     = "llm_schema_extract"

	// MaxModelInputRunes caps the text sent to the model pass.
	MaxModelInputRunes = 20000
)

// ModelExtractor is the probabilistic extraction collaborator.
type ModelExtractor interface {
	Extract(ctx context.Context, text string) ([]rules.ClauseDraft, error)
}

// Extractor runs both passes and merges their output.
type Extractor struct {
	model   ModelExtractor
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Extractor)

// WithModel enables the model pass.
func WithModel(model ModelExtractor) Option {
	return func(e *Extractor) {
		e.model = model
	}
}

// WithBreaker skips the model pass while the breaker is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(e *Extractor) {
		e.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract normalizes the document, checksums it and merges both passes.
// Heuristic clauses come first; model clauses are appended only when their id is new.
func (e *Extractor) Extract(ctx context.Context, doc rules.RawDocument) *rules.Draft {
	normalized := Normalize(doc.Content)

	clauses := RuleBased(normalized)
	traces := []string{TraceRuleBased}

	if e.model != nil {
		traces = append(traces, TraceModel)
		clauses = Merge(clauses, e.modelPass(ctx, doc, normalized))
	}

	return &rules.Draft{
		CityCode:        doc.CityCode,
		Checksum:        Checksum(normalized),
		ValidationScore: Score(clauses),
		Clauses:         clauses,
		SourceURLs:      pstrings.DedupeAndTrim([]string{doc.SourceURL}),
		ParserTraces:    traces,
	}
}

func (e *Extractor) modelPass(ctx context.Context, doc rules.RawDocument, normalized string) []rules.ClauseDraft {
	if e.breaker != nil && !e.breaker.Allow() {
		e.logger.DebugContext(ctx, "model extraction skipped: breaker open",
			"city_code", doc.CityCode,
		)
		return nil
	}

	drafts, err := e.model.Extract(ctx, pstrings.TruncateRunes(normalized, MaxModelInputRunes))
	if err != nil {
		if e.breaker != nil {
			if _, change := e.breaker.RecordFailure(); change.Opened {
				e.logger.WarnContext(ctx, "model extraction breaker opened",
					"breaker", e.breaker.Name(),
				)
			}
		}
		e.logger.WarnContext(ctx, "model extraction failed; continuing with rule-based clauses",
			"city_code", doc.CityCode,
			"error", err,
		)
		return nil
	}
	if e.breaker != nil {
		if _, change := e.breaker.RecordSuccess(); change.Closed {
			e.logger.InfoContext(ctx, "model extraction breaker closed",
				"breaker", e.breaker.Name(),
			)
		}
	}

	for _, d := range drafts {
		if issues := rules.Validate(d.Condition.Root); len(issues) > 0 {
			e.logger.WarnContext(ctx, "model clause uses unsupported condition",
				"city_code", doc.CityCode,
				"clause_id", d.ClauseID,
				"issues", issues,
			)
		}
	}
	return drafts
}

// Merge appends extra clauses whose id is not already present. The first
// clause with a given id wins, so the result never repeats an id.
func Merge(base, extra []rules.ClauseDraft) []rules.ClauseDraft {
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, c := range base {
		seen[c.ClauseID] = struct{}{}
	}
	merged := append([]rules.ClauseDraft(nil), base...)
	for _, c := range extra {
		if _, dup := seen[c.ClauseID]; dup {
			continue
		}
		seen[c.ClauseID] = struct{}{}
		merged = append(merged, c)
	}
	return merged
}

// Score is the mean clause confidence rounded to four decimals, zero when empty.
func Score(clauses []rules.ClauseDraft) float64 {
	if len(clauses) == 0 {
		return 0
	}
	var sum float64
	for _, c := range clauses {
		sum += c.ConfidenceOrZero()
	}
	return math.Round(sum/float64(len(clauses))*10000) / 10000
}
