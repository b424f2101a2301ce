// Package gemini implements generation.PaperAnalyzer on Google's Gemini API.
//
// An Analyzer renders the paper-analysis prompt template, calls the model with
// a JSON response type and retries transient failures with exponential
// backoff and jitter. Safety blocks and malformed responses are permanent.
//
// Source hands out Analyzers per API key so a request may bring its own
// credential; clients are cached in a small LRU.
package gemini
