package scoring

import (
	"errors"
	"fmt"
	"math"

	"resume-ats/internal/patterns"
)

const weightTolerance = 1e-9

// ErrInvalidConfig is returned by New when a Config cannot produce scores in [0,100].
var ErrInvalidConfig = errors.New("invalid scoring config")

// Weights 七项子评分的权重，总和必须为 1
type Weights struct {
	Experience     float64 `yaml:"experience" json:"experience"`
	Skills         float64 `yaml:"skills" json:"skills"`
	Education      float64 `yaml:"education" json:"education"`
	Certifications float64 `yaml:"certifications" json:"certifications"`
	Projects       float64 `yaml:"projects" json:"projects"`
	Social         float64 `yaml:"social" json:"social"`
	Keyword        float64 `yaml:"keyword" json:"keyword"`
}

func (w Weights) sum() float64 {
	return w.Experience + w.Skills + w.Education + w.Certifications + w.Projects + w.Social + w.Keyword
}

func (w Weights) isZero() bool {
	return w == Weights{}
}

// Config 评分配置
type Config struct {
	Weights        Weights            `yaml:"weights"`
	RequiredSkills []string           `yaml:"required_skills"`
	Keywords       []string           `yaml:"keywords"`
	EducationTerms []string           `yaml:"education_terms"`
	SocialBonus    map[string]float64 `yaml:"social_bonus"`

	// ExperienceCap is the number of experience lines worth a full sub-score.
	ExperienceCap     int     `yaml:"experience_cap"`
	CertificationStep float64 `yaml:"certification_step"`
	ProjectStep       float64 `yaml:"project_step"`
}

// DefaultConfig returns the built-in scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Experience:     0.30,
			Skills:         0.25,
			Education:      0.15,
			Certifications: 0.10,
			Projects:       0.10,
			Social:         0.05,
			Keyword:        0.05,
		},
		RequiredSkills: []string{"Python", "Machine Learning", "Data Science", "SQL", "JavaScript", "Cloud Computing"},
		Keywords:       []string{"AI", "Deep Learning", "AWS", "Leadership", "Project Management"},
		EducationTerms: []string{"Computer Science", "Engineering"},
		SocialBonus: map[string]float64{
			patterns.PlatformLinkedIn:  40,
			patterns.PlatformGitHub:    40,
			patterns.PlatformPortfolio: 20,
		},
		ExperienceCap:     10,
		CertificationStep: 20,
		ProjectStep:       25,
	}
}

// WithDefaults fills every unset field from DefaultConfig. Weights are taken
// as a whole: either all seven are given or none.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Weights.isZero() {
		c.Weights = def.Weights
	}
	if len(c.RequiredSkills) == 0 {
		c.RequiredSkills = def.RequiredSkills
	}
	if len(c.Keywords) == 0 {
		c.Keywords = def.Keywords
	}
	if len(c.EducationTerms) == 0 {
		c.EducationTerms = def.EducationTerms
	}
	if len(c.SocialBonus) == 0 {
		c.SocialBonus = def.SocialBonus
	}
	if c.ExperienceCap == 0 {
		c.ExperienceCap = def.ExperienceCap
	}
	if c.CertificationStep == 0 {
		c.CertificationStep = def.CertificationStep
	}
	if c.ProjectStep == 0 {
		c.ProjectStep = def.ProjectStep
	}
	return c
}

// Validate checks that the weights are convex and every vocabulary is usable.
func (c Config) Validate() error {
	ws := []float64{
		c.Weights.Experience, c.Weights.Skills, c.Weights.Education,
		c.Weights.Certifications, c.Weights.Projects, c.Weights.Social, c.Weights.Keyword,
	}
	for _, w := range ws {
		if w < 0 || math.IsNaN(w) {
			return fmt.Errorf("%w: negative or NaN weight %v", ErrInvalidConfig, w)
		}
	}
	if s := c.Weights.sum(); math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, s)
	}
	if len(c.RequiredSkills) == 0 {
		return fmt.Errorf("%w: required_skills is empty", ErrInvalidConfig)
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("%w: keywords is empty", ErrInvalidConfig)
	}
	if c.ExperienceCap <= 0 {
		return fmt.Errorf("%w: experience_cap must be positive", ErrInvalidConfig)
	}
	if c.CertificationStep < 0 || c.ProjectStep < 0 {
		return fmt.Errorf("%w: negative step", ErrInvalidConfig)
	}
	for platform, bonus := range c.SocialBonus {
		if bonus < 0 {
			return fmt.Errorf("%w: negative bonus for %s", ErrInvalidConfig, platform)
		}
	}
	return nil
}
