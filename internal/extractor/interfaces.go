package extractor

import (
	"context"
	"strings"
)

// LineClassifier decides whether a single text line belongs to a section.
type LineClassifier interface {
	Classify(line string, keywords []string) bool
}

// VocabularyMatcher returns the vocabulary entries present in text, in
// vocabulary order.
type VocabularyMatcher interface {
	Match(text string, vocabulary []string) []string
}

// PersonEntityRecognizer finds person-name entities in text, in the
// recognizer's own order.
type PersonEntityRecognizer interface {
	FindPersonEntities(ctx context.Context, text string) ([]string, error)
}

// SubstringClassifier keeps a line if any keyword occurs in it as a
// case-sensitive substring.
type SubstringClassifier struct{}

// Classify implements LineClassifier.
func (SubstringClassifier) Classify(line string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// FoldedSubstringMatcher matches vocabulary entries as case-insensitive
// substrings of the whole text. Partial words match too ("Java" inside
// "JavaScript").
type FoldedSubstringMatcher struct{}

// Match implements VocabularyMatcher.
func (FoldedSubstringMatcher) Match(text string, vocabulary []string) []string {
	folded := strings.ToLower(text)
	var found []string
	for _, term := range vocabulary {
		if strings.Contains(folded, strings.ToLower(term)) {
			found = append(found, term)
		}
	}
	return found
}

var (
	_ LineClassifier    = SubstringClassifier{}
	_ VocabularyMatcher = FoldedSubstringMatcher{}
)
