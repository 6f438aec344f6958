package validator

import (
	"strings"

	"docsite-rag/internal/models"
)

// Outcome is the grounding verdict for one (answer, context) pair.
// Rejection is a designed outcome, not an error: the pipeline substitutes
// the fallback answer and records the low confidence.
type Outcome struct {
	Accepted   bool
	Confidence float64
}

// absencePhrases mark answers that honestly acknowledge missing information.
// Such answers are valid by construction.
var absencePhrases = []string{
	"not available in the book",
	"not found in the book",
	"not mentioned in the book",
	"no information in the book",
	"book does not contain",
	"not provided in the book",
	"not specified in the book",
	"not available in the documentation",
	"not found in the documentation",
	"not covered in the documentation",
}

// Validator heuristically checks that an answer's claims are traceable to
// the retrieved context, via lexical overlap of the answer's meaningful
// terms against the context text. It is a pure function of its inputs.
type Validator struct {
	threshold float64
	fallback  string
}

// New creates a validator. threshold is the minimum confidence below which
// an answer is rejected; fallback is the fixed answer text that is always
// accepted when nothing was retrieved.
func New(threshold float64, fallback string) *Validator {
	return &Validator{threshold: threshold, fallback: fallback}
}

// Validate scores how well the answer is grounded in the context set.
// Validating the same pair twice yields the same outcome.
func (v *Validator) Validate(answer string, contextSet []models.RetrievalResult) Outcome {
	lower := strings.ToLower(answer)

	if len(contextSet) == 0 {
		// Nothing retrieved: only the honest "not found" answer is valid,
		// and confidence is zero by definition.
		accepted := answer == v.fallback || containsAbsencePhrase(lower)
		return Outcome{Accepted: accepted, Confidence: 0}
	}

	if containsAbsencePhrase(lower) {
		return Outcome{Accepted: true, Confidence: 0.9}
	}

	coverage := termCoverage(lower, contextSet)
	return Outcome{Accepted: coverage >= v.threshold, Confidence: coverage}
}

func containsAbsencePhrase(lowerAnswer string) bool {
	for _, phrase := range absencePhrases {
		if strings.Contains(lowerAnswer, phrase) {
			return true
		}
	}
	return false
}

// termCoverage is the fraction of the answer's meaningful terms that appear
// somewhere in the context. An answer with no meaningful terms (e.g. "Yes.")
// has nothing to verify and scores the top retrieval score instead.
func termCoverage(lowerAnswer string, contextSet []models.RetrievalResult) float64 {
	contextTerms := make(map[string]bool)
	for _, res := range contextSet {
		for _, term := range meaningfulTerms(strings.ToLower(res.Chunk.Text)) {
			contextTerms[term] = true
		}
	}

	answerTerms := meaningfulTerms(lowerAnswer)
	if len(answerTerms) == 0 {
		return float64(contextSet[0].Score)
	}

	matched := 0
	for _, term := range answerTerms {
		if contextTerms[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(answerTerms))
}

// meaningfulTerms extracts lowercase words longer than three characters,
// stripped of punctuation. Citation markers like [S1] fall out naturally.
func meaningfulTerms(lower string) []string {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	var terms []string
	for _, f := range fields {
		if len(f) > 3 {
			terms = append(terms, f)
		}
	}
	return terms
}
