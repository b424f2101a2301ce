// Package generation defines the boundary between the analysis pipeline and
// LLM-backed enrichment. The PaperAnalyzer interface produces a structured
// paper summary from parsed document text; implementations live under
// internal/platform (Gemini).
package generation
