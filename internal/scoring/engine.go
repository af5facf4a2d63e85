// Package scoring computes the deterministic 0-100 candidate score from a
// CandidateRecord. Engines are immutable and safe for concurrent use.
package scoring

import (
	"math"
	"path"
	"strings"

	"resume-ats/internal/sanitize"
	"resume-ats/internal/types"
)

const maxSubScore = 100.0

// Breakdown holds the seven sub-scores, each in [0,100], and the rounded total.
type Breakdown struct {
	Experience     float64 `json:"experience"`
	Skills         float64 `json:"skills"`
	Education      float64 `json:"education"`
	Certifications float64 `json:"certifications"`
	Projects       float64 `json:"projects"`
	Social         float64 `json:"social"`
	Keyword        float64 `json:"keyword"`
	Total          float64 `json:"total"`
}

// Engine scores candidate records.
type Engine struct {
	cfg      Config
	required map[string]struct{}
	keywords map[string]struct{}
}

// New validates cfg and builds an Engine. Unset fields fall back to defaults.
func New(cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:      cfg,
		required: toSet(cfg.RequiredSkills),
		keywords: toSet(cfg.Keywords),
	}
	return e, nil
}

// Default returns an Engine over DefaultConfig.
func Default() *Engine {
	e, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Score returns the weighted total rounded to two decimals.
func (e *Engine) Score(rec types.CandidateRecord) float64 {
	return e.Breakdown(rec).Total
}

// Breakdown computes every sub-score independently. Absent and empty fields
// both contribute zero.
func (e *Engine) Breakdown(rec types.CandidateRecord) Breakdown {
	b := Breakdown{
		Experience:     e.experience(rec.Experience),
		Skills:         e.skills(rec.Skills),
		Education:      e.education(rec.Education),
		Certifications: linear(len(rec.Certifications), e.cfg.CertificationStep),
		Projects:       linear(len(rec.Projects), e.cfg.ProjectStep),
		Social:         e.social(rec.SocialLinks),
		Keyword:        e.keyword(rec.Experience, rec.Education),
	}
	w := e.cfg.Weights
	total := b.Experience*w.Experience +
		b.Skills*w.Skills +
		b.Education*w.Education +
		b.Certifications*w.Certifications +
		b.Projects*w.Projects +
		b.Social*w.Social +
		b.Keyword*w.Keyword
	b.Total = clamp(round2(total))
	return b
}

// Result projects rec into a ScoreResult. resumeFile is reduced to its base name.
func (e *Engine) Result(resumeFile string, rec types.CandidateRecord) types.ScoreResult {
	name := rec.Name
	if name == "" {
		name = sanitize.UnknownName
	}
	return types.ScoreResult{
		ResumeFile: path.Base(resumeFile),
		Name:       name,
		Score:      e.Score(rec),
	}
}

func (e *Engine) experience(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	return math.Min(float64(len(lines))/float64(e.cfg.ExperienceCap)*maxSubScore, maxSubScore)
}

func (e *Engine) skills(skills []string) float64 {
	if len(skills) == 0 {
		return 0
	}
	return coverage(toSet(skills), e.required)
}

func (e *Engine) education(lines []string) float64 {
	if len(lines) == 0 {
		return 0
	}
	for _, line := range lines {
		for _, term := range e.cfg.EducationTerms {
			if strings.Contains(line, term) {
				return maxSubScore
			}
		}
	}
	return maxSubScore / 2
}

func (e *Engine) social(links map[string]string) float64 {
	var sum float64
	for platform := range links {
		sum += e.cfg.SocialBonus[platform]
	}
	return math.Min(sum, maxSubScore)
}

func (e *Engine) keyword(experience, education []string) float64 {
	if len(experience) == 0 && len(education) == 0 {
		return 0
	}
	tokens := make(map[string]struct{})
	for _, group := range [][]string{experience, education} {
		for _, line := range group {
			for _, tok := range strings.Fields(line) {
				tokens[tok] = struct{}{}
			}
		}
	}
	return coverage(tokens, e.keywords)
}

// coverage is |have ∩ want| / |want| * 100.
func coverage(have, want map[string]struct{}) float64 {
	if len(want) == 0 {
		return 0
	}
	var n int
	for k := range want {
		if _, ok := have[k]; ok {
			n++
		}
	}
	return float64(n) / float64(len(want)) * maxSubScore
}

func linear(n int, step float64) float64 {
	return math.Min(float64(n)*step, maxSubScore)
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(v, maxSubScore))
}
