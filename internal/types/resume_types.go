package types

// CandidateRecord 简历结构化记录
// Sparse: a zero-length field is absent and is never serialized.
type CandidateRecord struct {
	Name           string            `json:"name,omitempty"`
	Email          string            `json:"email,omitempty"`
	Phone          string            `json:"phone,omitempty"`
	Experience     []string          `json:"experience,omitempty"`
	Education      []string          `json:"education,omitempty"`
	Skills         []string          `json:"skills,omitempty"`
	Certifications []string          `json:"certifications,omitempty"`
	Projects       []string          `json:"projects,omitempty"`
	Languages      []string          `json:"languages,omitempty"`
	SocialLinks    map[string]string `json:"social_links,omitempty"`
}

// IsEmpty reports whether every field is absent.
func (r CandidateRecord) IsEmpty() bool {
	return r.Name == "" && r.Email == "" && r.Phone == "" &&
		len(r.Experience) == 0 && len(r.Education) == 0 && len(r.Skills) == 0 &&
		len(r.Certifications) == 0 && len(r.Projects) == 0 && len(r.Languages) == 0 &&
		len(r.SocialLinks) == 0
}

// Normalize turns empty sequences and mappings into nil so that absent and
// empty fields compare equal.
func (r CandidateRecord) Normalize() CandidateRecord {
	nilIfEmpty := func(s []string) []string {
		if len(s) == 0 {
			return nil
		}
		return s
	}
	r.Experience = nilIfEmpty(r.Experience)
	r.Education = nilIfEmpty(r.Education)
	r.Skills = nilIfEmpty(r.Skills)
	r.Certifications = nilIfEmpty(r.Certifications)
	r.Projects = nilIfEmpty(r.Projects)
	r.Languages = nilIfEmpty(r.Languages)
	if len(r.SocialLinks) == 0 {
		r.SocialLinks = nil
	}
	return r
}

// ScoreResult 候选人评分结果，由记录即时计算，不持久化
type ScoreResult struct {
	ResumeFile string  `json:"resume_file"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
}
