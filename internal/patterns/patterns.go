// Package patterns holds the regular expressions and keyword vocabularies
// used by field extraction. A Library is immutable once built.
package patterns

import (
	"fmt"
	"regexp"
)

// Section names, also used as CandidateRecord JSON keys.
const (
	SectionExperience     = "experience"
	SectionEducation      = "education"
	SectionCertifications = "certifications"
	SectionProjects       = "projects"
)

// Platform names used as social_links keys.
const (
	PlatformLinkedIn  = "LinkedIn"
	PlatformGitHub    = "GitHub"
	PlatformTwitter   = "Twitter"
	PlatformPortfolio = "Portfolio"
)

const (
	emailPattern = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	phonePattern = `\+?\d{1,3}[-.\s]?\d{3}[-.\s]?\d{3,4}[-.\s]?\d{4}`
)

// socialPatterns is evaluated in this order; each platform is matched independently.
var socialPatterns = []struct {
	platform string
	expr     string
}{
	{PlatformLinkedIn, `(https?://)?(www\.)?linkedin\.com/[a-zA-Z0-9\-_/]+`},
	{PlatformGitHub, `(https?://)?(www\.)?github\.com/[a-zA-Z0-9\-_/]+`},
	{PlatformTwitter, `(https?://)?(www\.)?twitter\.com/[a-zA-Z0-9_]+`},
	{PlatformPortfolio, `(https?://)?(www\.)?[a-zA-Z0-9\-]+\.(com|net|org|io|dev)[a-zA-Z0-9\-_/]*`},
}

// Vocabulary is the keyword configuration of a Library. Empty lists fall back
// to the defaults when passed through New.
type Vocabulary struct {
	ExperienceKeywords    []string `yaml:"experience_keywords"`
	EducationKeywords     []string `yaml:"education_keywords"`
	CertificationKeywords []string `yaml:"certification_keywords"`
	ProjectKeywords       []string `yaml:"project_keywords"`
	Skills                []string `yaml:"skills"`
	Languages             []string `yaml:"languages"`
}

// DefaultVocabulary returns a fresh copy of the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ExperienceKeywords: []string{
			"Experience", "Intern", "Work", "Company", "Project",
			"Employment", "Job", "Position", "Responsibilities",
		},
		EducationKeywords: []string{
			"Bachelor", "Master", "B.E", "B.Tech", "M.Tech", "Engineering",
			"Degree", "University", "College", "School", "CGPA",
		},
		CertificationKeywords: []string{"Certification", "Certified", "Course", "Diploma", "Training"},
		ProjectKeywords:       []string{"Project", "Research", "Developed", "Built"},
		Skills: []string{
			"Python", "Java", "C++", "Machine Learning", "Artificial Intelligence",
			"Data Science", "React", "SQL", "JavaScript", "HTML", "CSS", "Node.js",
			"Angular", "Django", "Flask", "Excel", "Power BI", "Cloud Computing",
			"AWS", "Azure",
		},
		Languages: []string{
			"English", "Spanish", "French", "German", "Chinese",
			"Hindi", "Portuguese", "Russian", "Arabic", "Japanese",
		},
	}
}

// Section is a named keyword set for line classification.
type Section struct {
	Name     string
	Keywords []string
}

// SocialPattern pairs a platform with its link expression.
type SocialPattern struct {
	Platform string
	Regex    *regexp.Regexp
}

// Library is the compiled, read-only pattern registry.
type Library struct {
	email    *regexp.Regexp
	phone    *regexp.Regexp
	social   []SocialPattern
	sections []Section
	skills   []string
	langs    []string
}

// New compiles a Library from vocab. Empty vocabulary lists are replaced by
// their defaults.
func New(vocab Vocabulary) (*Library, error) {
	def := DefaultVocabulary()
	vocab.ExperienceKeywords = orDefault(vocab.ExperienceKeywords, def.ExperienceKeywords)
	vocab.EducationKeywords = orDefault(vocab.EducationKeywords, def.EducationKeywords)
	vocab.CertificationKeywords = orDefault(vocab.CertificationKeywords, def.CertificationKeywords)
	vocab.ProjectKeywords = orDefault(vocab.ProjectKeywords, def.ProjectKeywords)
	vocab.Skills = orDefault(vocab.Skills, def.Skills)
	vocab.Languages = orDefault(vocab.Languages, def.Languages)

	for _, list := range [][]string{
		vocab.ExperienceKeywords, vocab.EducationKeywords, vocab.CertificationKeywords,
		vocab.ProjectKeywords, vocab.Skills, vocab.Languages,
	} {
		for _, kw := range list {
			if kw == "" {
				return nil, fmt.Errorf("vocabulary contains an empty keyword")
			}
		}
	}

	lib := &Library{
		email: regexp.MustCompile(emailPattern),
		phone: regexp.MustCompile(phonePattern),
		sections: []Section{
			{Name: SectionExperience, Keywords: vocab.ExperienceKeywords},
			{Name: SectionEducation, Keywords: vocab.EducationKeywords},
			{Name: SectionCertifications, Keywords: vocab.CertificationKeywords},
			{Name: SectionProjects, Keywords: vocab.ProjectKeywords},
		},
		skills: vocab.Skills,
		langs:  vocab.Languages,
	}
	for _, sp := range socialPatterns {
		lib.social = append(lib.social, SocialPattern{Platform: sp.platform, Regex: regexp.MustCompile(sp.expr)})
	}
	return lib, nil
}

// Default returns a Library built from DefaultVocabulary.
func Default() *Library {
	lib, err := New(Vocabulary{})
	if err != nil {
		panic(err)
	}
	return lib
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Email returns the email expression.
func (l *Library) Email() *regexp.Regexp { return l.email }

// Phone returns the phone expression.
func (l *Library) Phone() *regexp.Regexp { return l.phone }

// Social returns the platform patterns in evaluation order.
func (l *Library) Social() []SocialPattern {
	out := make([]SocialPattern, len(l.social))
	copy(out, l.social)
	return out
}

// Sections returns the line-classification keyword sets.
func (l *Library) Sections() []Section {
	out := make([]Section, len(l.sections))
	for i, s := range l.sections {
		out[i] = Section{Name: s.Name, Keywords: append([]string(nil), s.Keywords...)}
	}
	return out
}

// Skills returns the skill vocabulary in match order.
func (l *Library) Skills() []string { return append([]string(nil), l.skills...) }

// Languages returns the spoken-language vocabulary in match order.
func (l *Library) Languages() []string { return append([]string(nil), l.langs...) }
