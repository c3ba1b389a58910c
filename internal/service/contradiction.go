package service

import (
	"context"
	"strings"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxCandidates caps the contradiction candidate pool so bulk
// detection stays O(n) over a bounded set.
const DefaultMaxCandidates = 500

// stopWords are excluded when measuring subject overlap between claims.
var stopWords = map[string]struct{}{
	"is": {}, "a": {}, "the": {}, "an": {}, "and": {}, "or": {},
	"of": {}, "in": {}, "to": {}, "for": {}, "it": {}, "are": {},
}

// opposingPairs marks predicates that contradict when the claims share a
// subject.
var opposingPairs = [][2]string{
	{"fast", "slow"},
	{"good", "bad"},
	{"easy", "hard"},
	{"simple", "complex"},
	{"safe", "unsafe"},
	{"efficient", "inefficient"},
	{"reliable", "unreliable"},
	{"secure", "insecure"},
	{"stable", "unstable"},
	{"useful", "useless"},
	{"true", "false"},
	{"correct", "incorrect"},
	{"possible", "impossible"},
	{"always", "never"},
	{"increase", "decrease"},
	{"better", "worse"},
}

var negationPrefixes = []string{
	"it is false that ",
	"it is not true that ",
	"it is not the case that ",
}

// negationMarkers maps each marker to what remains when it is removed;
// "cannot" strips back to "can" so "X cannot fly" pairs with "X can fly".
var negationMarkers = [][2]string{
	{" not ", " "},
	{" no ", " "},
	{" never ", " "},
	{" cannot ", " can "},
}

// ContradictionDetector finds beliefs whose claims contradict each other
// using text heuristics; no learned model is involved.
type ContradictionDetector struct {
	beliefs domain.BeliefStore
	logger  *zap.Logger

	MaxCandidates int
}

func NewContradictionDetector(beliefs domain.BeliefStore, logger *zap.Logger) *ContradictionDetector {
	return &ContradictionDetector{
		beliefs:       beliefs,
		logger:        logger,
		MaxCandidates: DefaultMaxCandidates,
	}
}

// LoadCandidates pre-loads the PROPOSED and ACTIVE beliefs used as the
// comparison pool. Callers checking many beliefs in a loop must load once
// and pass the result to Detect rather than re-querying storage per call.
func (d *ContradictionDetector) LoadCandidates(ctx context.Context) ([]domain.Belief, error) {
	var candidates []domain.Belief
	for _, status := range []domain.BeliefStatus{domain.StatusProposed, domain.StatusActive} {
		status := status
		offset := 0
		for len(candidates) < d.MaxCandidates {
			batch, err := d.beliefs.List(ctx, &status, listBatchSize, offset)
			if err != nil {
				return nil, err
			}
			if len(batch) == 0 {
				break
			}
			candidates = append(candidates, batch...)
			offset += listBatchSize
		}
		if len(candidates) >= d.MaxCandidates {
			break
		}
	}
	if len(candidates) >= d.MaxCandidates {
		candidates = candidates[:d.MaxCandidates]
		d.logger.Warn("contradiction candidates capped; some beliefs may be skipped",
			zap.Int("max_candidates", d.MaxCandidates))
	}
	return candidates, nil
}

// Detect returns the IDs of candidates whose claims contradict the given
// belief. Detection is symmetric: if A contradicts B then B contradicts A.
func (d *ContradictionDetector) Detect(belief *domain.Belief, candidates []domain.Belief) []uuid.UUID {
	claim := normalizeClaim(belief.ClaimText)

	var contradictions []uuid.UUID
	for i := range candidates {
		other := &candidates[i]
		if other.ID == belief.ID {
			continue
		}
		if Contradicts(claim, other.ClaimText) {
			contradictions = append(contradictions, other.ID)
		}
	}
	return contradictions
}

// Contradicts reports whether two claims contradict under the negation or
// opposing-predicate heuristics. Inputs are normalized internally, so raw
// claim text is accepted.
func Contradicts(a, b string) bool {
	a = normalizeClaim(a)
	b = normalizeClaim(b)
	if a == b {
		return false
	}
	if isNegation(a, b) {
		return true
	}
	return hasOpposingPredicates(a, b)
}

// normalizeClaim case-folds and collapses runs of whitespace.
func normalizeClaim(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// isNegation reports whether b equals a with a recognized negation marker
// inserted or removed at a claim boundary.
func isNegation(a, b string) bool {
	return stripNegation(a) == b || stripNegation(b) == a
}

// stripNegation removes the first recognized negation construct: an
// "it is false that"-style prefix, a contracted negative, or a standalone
// marker word.
func stripNegation(s string) string {
	for _, prefix := range negationPrefixes {
		if strings.HasPrefix(s, prefix) {
			return normalizeClaim(strings.TrimPrefix(s, prefix))
		}
	}
	padded := " " + s + " "
	if strings.Contains(padded, "n't ") {
		return normalizeClaim(strings.ReplaceAll(padded, "n't ", " "))
	}
	for _, marker := range negationMarkers {
		if strings.Contains(padded, marker[0]) {
			return normalizeClaim(strings.Replace(padded, marker[0], marker[1], 1))
		}
	}
	return s
}

// hasOpposingPredicates checks the shared-subject heuristic: at least two
// shared non-stopword tokens plus an antonym pair split across the claims.
func hasOpposingPredicates(a, b string) bool {
	wordsA := tokenSet(a)
	wordsB := tokenSet(b)

	shared := 0
	for w := range wordsA {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, ok := wordsB[w]; ok {
			shared++
		}
	}
	if shared < 2 {
		return false
	}

	for _, pair := range opposingPairs {
		_, aHas1 := wordsA[pair[0]]
		_, aHas2 := wordsA[pair[1]]
		_, bHas1 := wordsB[pair[0]]
		_, bHas2 := wordsB[pair[1]]
		if (aHas1 && bHas2) || (aHas2 && bHas1) {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
