package taxonomy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/pisflow/pisflow/pkg/generation"
	"github.com/pisflow/pisflow/pkg/models"
)

// Source identifies which path produced a classification result.
type Source string

const (
	// SourceExact means the deterministic alias lookup resolved the text.
	SourceExact Source = "exact"
	// SourceAI means the generation backend proposed the triple and the
	// proposal survived table re-validation.
	SourceAI Source = "ai"
	// SourceNone means no confident match was found.
	SourceNone Source = "none"
)

// Match is the outcome of one classification call. Category is nil exactly
// when Source is SourceNone.
type Match struct {
	Category   *models.Category `json:"category"`
	Confidence float64          `json:"confidence"`
	Source     Source           `json:"source"`
}

// Unclassified reports whether the matcher found no acceptable triple.
func (m Match) Unclassified() bool {
	return m.Category == nil
}

const defaultConfidenceThreshold = 0.6

// Matcher resolves free-text product descriptions into taxonomy triples.
//
// Resolution order: a caller-supplied suggestion (validated against the
// table), then the deterministic alias lookup, then the generation backend.
// A backend proposal is only accepted when its triple exists in the table
// and its confidence clears the threshold; everything else is reported as
// unclassified rather than guessed.
type Matcher struct {
	table     *Table
	generator generation.Service
	cache     Cache
	threshold float64
	logger    *slog.Logger
}

// MatcherOption customizes a matcher.
type MatcherOption func(*Matcher)

// WithCache installs a cache for AI-path results.
func WithCache(cache Cache) MatcherOption {
	return func(m *Matcher) {
		m.cache = cache
	}
}

// WithConfidenceThreshold overrides the minimum confidence an AI proposal
// must reach to be accepted.
func WithConfidenceThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// NewMatcher creates a matcher over the given table. The generator may be
// nil, in which case only the deterministic path runs.
func NewMatcher(table *Table, generator generation.Service, logger *slog.Logger, opts ...MatcherOption) *Matcher {
	matcher := &Matcher{
		table:     table,
		generator: generator,
		cache:     NoopCache{},
		threshold: defaultConfidenceThreshold,
		logger:    logger.With("module", "taxonomy"),
	}

	for _, opt := range opts {
		opt(matcher)
	}

	return matcher
}

// Table returns the taxonomy table the matcher classifies against.
func (m *Matcher) Table() *Table {
	return m.table
}

// Classify resolves text to a category triple. A non-nil suggested triple is
// honored when it exists in the table; an unknown suggestion is ignored with
// a warning rather than trusted.
//
// An error is returned only when the generation backend was needed and
// failed; the caller decides whether that blocks or degrades.
func (m *Matcher) Classify(ctx context.Context, text string, suggested *models.Category) (Match, error) {
	if suggested != nil {
		if m.table.Contains(*suggested) {
			return Match{Category: suggested, Confidence: 1, Source: SourceExact}, nil
		}

		m.logger.WarnContext(ctx, "Ignoring suggested category not present in taxonomy",
			"suggested", suggested.String(),
		)
	}

	if category, ok := m.table.LookupExact(text); ok {
		return Match{Category: &category, Confidence: 1, Source: SourceExact}, nil
	}

	key := cacheKey(text)

	if cached, ok, err := m.cache.Get(ctx, key); err != nil {
		m.logger.WarnContext(ctx, "Classification cache read failed", "error", err)
	} else if ok {
		// A cached triple may predate a taxonomy change.
		if cached.Category == nil || m.table.Contains(*cached.Category) {
			return cached, nil
		}
	}

	if m.generator == nil {
		return Match{Source: SourceNone}, nil
	}

	result, err := m.generator.SuggestCategory(ctx, generation.SuggestCategoryRequest{
		Text:       text,
		Candidates: m.table.Candidates(),
	})
	if err != nil {
		return Match{Source: SourceNone}, err
	}

	match := m.acceptProposal(ctx, result)

	if err := m.cache.Set(ctx, key, match); err != nil {
		m.logger.WarnContext(ctx, "Classification cache write failed", "error", err)
	}

	return match, nil
}

// acceptProposal applies the validation contract to a backend proposal:
// triples absent from the table and proposals below the confidence threshold
// are both treated as no match.
func (m *Matcher) acceptProposal(ctx context.Context, result *generation.SuggestCategoryResult) Match {
	if result.Category == nil {
		return Match{Source: SourceNone}
	}

	if !m.table.Contains(*result.Category) {
		m.logger.WarnContext(ctx, "Rejecting AI category not present in taxonomy",
			"proposed", result.Category.String(),
		)

		return Match{Source: SourceNone}
	}

	if result.Confidence < m.threshold {
		m.logger.InfoContext(ctx, "Rejecting AI category below confidence threshold",
			"proposed", result.Category.String(),
			"confidence", result.Confidence,
			"threshold", m.threshold,
		)

		return Match{Source: SourceNone}
	}

	return Match{Category: result.Category, Confidence: result.Confidence, Source: SourceAI}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))

	return hex.EncodeToString(sum[:])
}
