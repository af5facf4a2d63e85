// Package extractor turns plain resume text into a sparse CandidateRecord.
package extractor

import (
	"context"
	"strings"

	"resume-ats/internal/logger"
	"resume-ats/internal/patterns"
	"resume-ats/internal/types"
)

// FieldExtractor is stateless and safe for concurrent use.
type FieldExtractor struct {
	lib        *patterns.Library
	classifier LineClassifier
	matcher    VocabularyMatcher
	recognizer PersonEntityRecognizer
}

// Option configures a FieldExtractor.
type Option func(*FieldExtractor)

// WithLineClassifier replaces the section line policy.
func WithLineClassifier(c LineClassifier) Option {
	return func(e *FieldExtractor) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithVocabularyMatcher replaces the skills/languages policy.
func WithVocabularyMatcher(m VocabularyMatcher) Option {
	return func(e *FieldExtractor) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithRecognizer sets the person-name recognizer. Without one, names are
// only taken from identity hints.
func WithRecognizer(r PersonEntityRecognizer) Option {
	return func(e *FieldExtractor) {
		e.recognizer = r
	}
}

// New builds a FieldExtractor over lib. A nil lib uses patterns.Default().
func New(lib *patterns.Library, opts ...Option) *FieldExtractor {
	if lib == nil {
		lib = patterns.Default()
	}
	e := &FieldExtractor{
		lib:        lib,
		classifier: SubstringClassifier{},
		matcher:    FoldedSubstringMatcher{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type extractOptions struct {
	name, phone, email string
}

// ExtractOption tunes a single Extract call.
type ExtractOption func(*extractOptions)

// WithIdentityHints supplies already-known identity fields. Non-empty hints
// replace the extracted values.
func WithIdentityHints(name, phone, email string) ExtractOption {
	return func(o *extractOptions) {
		o.name = strings.TrimSpace(name)
		o.phone = strings.TrimSpace(phone)
		o.email = strings.TrimSpace(email)
	}
}

// Extract never fails: anything it cannot find is left absent.
func (e *FieldExtractor) Extract(ctx context.Context, text string, opts ...ExtractOption) types.CandidateRecord {
	var o extractOptions
	for _, opt := range opts {
		opt(&o)
	}

	var rec types.CandidateRecord
	if strings.TrimSpace(text) != "" {
		rec = e.extractFromText(ctx, text)
	}

	if o.name != "" {
		rec.Name = o.name
	}
	if o.phone != "" {
		rec.Phone = o.phone
	}
	if o.email != "" {
		rec.Email = o.email
	}
	return rec
}

func (e *FieldExtractor) extractFromText(ctx context.Context, text string) types.CandidateRecord {
	rec := types.CandidateRecord{
		Name:  e.extractName(ctx, text),
		Email: e.lib.Email().FindString(text),
		Phone: e.lib.Phone().FindString(text),
	}

	lines := strings.Split(text, "\n")
	for _, section := range e.lib.Sections() {
		matched := e.classifyLines(lines, section.Keywords)
		switch section.Name {
		case patterns.SectionExperience:
			rec.Experience = matched
		case patterns.SectionEducation:
			rec.Education = matched
		case patterns.SectionCertifications:
			rec.Certifications = matched
		case patterns.SectionProjects:
			rec.Projects = matched
		}
	}

	rec.Skills = e.matcher.Match(text, e.lib.Skills())
	rec.Languages = e.matcher.Match(text, e.lib.Languages())
	rec.SocialLinks = e.extractSocialLinks(text)
	return rec.Normalize()
}

func (e *FieldExtractor) classifyLines(lines []string, keywords []string) []string {
	var out []string
	for _, line := range lines {
		if e.classifier.Classify(line, keywords) {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

func (e *FieldExtractor) extractSocialLinks(text string) map[string]string {
	var links map[string]string
	for _, sp := range e.lib.Social() {
		m := sp.Regex.FindString(text)
		if m == "" {
			continue
		}
		if links == nil {
			links = make(map[string]string)
		}
		links[sp.Platform] = m
	}
	return links
}

// extractName returns the first multi-token person entity.
func (e *FieldExtractor) extractName(ctx context.Context, text string) string {
	if e.recognizer == nil {
		return ""
	}
	entities, err := e.recognizer.FindPersonEntities(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("person entity recognition failed, name left absent")
		return ""
	}
	for _, ent := range entities {
		ent = strings.TrimSpace(ent)
		if len(strings.Fields(ent)) > 1 {
			return ent
		}
	}
	return ""
}
