package extractor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"resume-ats/internal/patterns"
	"resume-ats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	names []string
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeRecognizer) FindPersonEntities(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.names, f.err
}

const sampleResume = `Jane Doe
jane.doe@example.com | +1-555-123-4567
linkedin.com/in/janedoe  https://github.com/janedoe
Work Experience
Software Intern at Acme Company
Developed a Python ETL Project for sales data
Education
B.Tech Computer Science, State University
Certified AWS Cloud Practitioner
Languages: English, Hindi`

func TestExtractSampleResume(t *testing.T) {
	rec := New(patterns.Default(), WithRecognizer(&fakeRecognizer{names: []string{"Jane", "Jane Doe", "Acme Corp"}})).
		Extract(context.Background(), sampleResume)

	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, "jane.doe@example.com", rec.Email)
	assert.Equal(t, "+1-555-123-4567", rec.Phone)
	assert.Equal(t, []string{
		"Work Experience",
		"Software Intern at Acme Company",
		"Developed a Python ETL Project for sales data",
	}, rec.Experience)
	assert.Equal(t, []string{"B.Tech Computer Science, State University"}, rec.Education)
	assert.Equal(t, []string{"Certified AWS Cloud Practitioner"}, rec.Certifications)
	assert.Equal(t, []string{"Developed a Python ETL Project for sales data"}, rec.Projects)
	assert.Equal(t, []string{"Python", "AWS"}, rec.Skills)
	assert.Equal(t, []string{"English", "Hindi"}, rec.Languages)
	assert.Equal(t, "linkedin.com/in/janedoe", rec.SocialLinks["LinkedIn"])
	assert.Equal(t, "https://github.com/janedoe", rec.SocialLinks["GitHub"])
	assert.NotContains(t, rec.SocialLinks, "Twitter")
}

func TestExtractEmptyTextYieldsEmptyRecord(t *testing.T) {
	rec := &fakeRecognizer{names: []string{"Jane Doe"}}
	e := New(nil, WithRecognizer(rec))

	for _, text := range []string{"", "   ", "\n\n\t"} {
		got := e.Extract(context.Background(), text)
		assert.True(t, got.IsEmpty())
		assert.Equal(t, types.CandidateRecord{}, got)
	}
	assert.Zero(t, rec.calls)
}

func TestExtractNeverReturnsEmptyCollections(t *testing.T) {
	got := New(nil).Extract(context.Background(), "nothing to see here")
	assert.Nil(t, got.Experience)
	assert.Nil(t, got.Skills)
	assert.Nil(t, got.SocialLinks)
}

func TestExtractLineMayAppearInSeveralSections(t *testing.T) {
	got := New(nil).Extract(context.Background(), "Research Project at University")
	assert.Equal(t, []string{"Research Project at University"}, got.Experience)
	assert.Equal(t, []string{"Research Project at University"}, got.Education)
	assert.Equal(t, []string{"Research Project at University"}, got.Projects)
}

func TestExtractLineKeywordsAreCaseSensitive(t *testing.T) {
	got := New(nil).Extract(context.Background(), "work experience in lowercase")
	assert.Nil(t, got.Experience)
}

func TestExtractKeepsDuplicateLines(t *testing.T) {
	got := New(nil).Extract(context.Background(), "Project A\nProject A")
	assert.Equal(t, []string{"Project A", "Project A"}, got.Projects)
}

func TestExtractVocabularySubstringFalsePositive(t *testing.T) {
	// "Java" is found inside "JavaScript"; this is the documented behaviour.
	got := New(nil).Extract(context.Background(), "javascript developer")
	assert.Equal(t, []string{"Java", "JavaScript"}, got.Skills)
}

func TestExtractNameRequiresMultipleTokens(t *testing.T) {
	got := New(nil, WithRecognizer(&fakeRecognizer{names: []string{"Cher", "  "}})).
		Extract(context.Background(), "Cher\nsinger")
	assert.Empty(t, got.Name)
}

func TestExtractNameTrimmed(t *testing.T) {
	got := New(nil, WithRecognizer(&fakeRecognizer{names: []string{"  Ada Lovelace \n"}})).
		Extract(context.Background(), "Ada Lovelace")
	assert.Equal(t, "Ada Lovelace", got.Name)
}

func TestExtractRecognizerErrorLeavesNameAbsent(t *testing.T) {
	got := New(nil, WithRecognizer(&fakeRecognizer{err: errors.New("model unavailable")})).
		Extract(context.Background(), "Ada Lovelace\nada@example.com")
	assert.Empty(t, got.Name)
	assert.Equal(t, "ada@example.com", got.Email)
}

func TestExtractIdentityHintsOverride(t *testing.T) {
	got := New(nil).Extract(context.Background(), "jane.doe@example.com",
		WithIdentityHints("Jane Q Doe", "555 000 1111", ""))
	assert.Equal(t, "Jane Q Doe", got.Name)
	assert.Equal(t, "555 000 1111", got.Phone)
	assert.Equal(t, "jane.doe@example.com", got.Email)
}

func TestExtractPortfolioOverlapsKnownPlatforms(t *testing.T) {
	got := New(nil).Extract(context.Background(), "profile: linkedin.com/in/x")
	require.Contains(t, got.SocialLinks, "Portfolio")
	assert.Equal(t, "linkedin.com/in/x", got.SocialLinks["Portfolio"])
}

type upperMatcher struct{}

func (upperMatcher) Match(text string, vocabulary []string) []string {
	var out []string
	for _, v := range vocabulary {
		if strings.Contains(text, strings.ToUpper(v)) {
			out = append(out, v)
		}
	}
	return out
}

func TestExtractUsesInjectedStrategies(t *testing.T) {
	lib, err := patterns.New(patterns.Vocabulary{Skills: []string{"go"}})
	require.NoError(t, err)

	e := New(lib,
		WithVocabularyMatcher(upperMatcher{}),
		WithLineClassifier(classifierFunc(func(line string, _ []string) bool { return strings.HasPrefix(line, "*") })),
	)
	got := e.Extract(context.Background(), "* GO services\nplain line")
	assert.Equal(t, []string{"go"}, got.Skills)
	assert.Equal(t, []string{"* GO services"}, got.Experience)
	assert.Equal(t, []string{"* GO services"}, got.Education)
}

type classifierFunc func(string, []string) bool

func (f classifierFunc) Classify(line string, keywords []string) bool { return f(line, keywords) }

func TestExtractConcurrentUse(t *testing.T) {
	e := New(nil, WithRecognizer(&fakeRecognizer{names: []string{"Jane Doe"}}))
	want := e.Extract(context.Background(), sampleResume)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, e.Extract(context.Background(), sampleResume))
		}()
	}
	wg.Wait()
}
