package domain

// PaperAnalysis is the structured summary produced by the optional enrichment stage.
type PaperAnalysis struct {
	CoreProblem     string          `json:"core_problem"`
	PreviousDilemma string          `json:"previous_dilemma"`
	CoreIntuition   string          `json:"core_intuition"`
	KeySteps        []string        `json:"key_steps"`
	Innovations     PaperInnovation `json:"innovations"`
	Boundaries      PaperBoundary   `json:"boundaries"`
	OneSentence     string          `json:"one_sentence"`
	// PaperText is the (truncated) text the analysis was computed from.
	PaperText string `json:"paperText,omitempty"`
}

type PaperInnovation struct {
	Comparison string `json:"comparison"`
	Essence    string `json:"essence"`
}

type PaperBoundary struct {
	Assumptions string `json:"assumptions"`
	Unsolved    string `json:"unsolved"`
}

// IsEmpty reports whether the analysis carries no usable content.
func (p *PaperAnalysis) IsEmpty() bool {
	return p == nil || (p.CoreProblem == "" && p.OneSentence == "" && len(p.KeySteps) == 0)
}

// ImageAnalysis is the structured description of one extracted figure.
type ImageAnalysis struct {
	Category  string   `json:"category"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
}

// Apply copies the analysis onto the artifact it describes.
func (ia ImageAnalysis) Apply(a *Artifact) {
	a.Category = ia.Category
	a.Summary = ia.Summary
	a.KeyPoints = ia.KeyPoints
}
