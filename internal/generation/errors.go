package generation

import "errors"

// Common errors returned by PaperAnalyzer implementations.
var (
	// ErrAnalysisFailed is returned when analysis fails for any general reason
	ErrAnalysisFailed = errors.New("failed to analyze paper")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during paper analysis")

	// ErrInvalidConfig is returned when the analyzer configuration is invalid
	ErrInvalidConfig = errors.New("invalid analyzer configuration")

	// ErrTextTooShort is returned when there is not enough text to analyze
	ErrTextTooShort = errors.New("paper text too short to analyze")

	// ErrEmptyImage is returned when there are no image bytes to analyze
	ErrEmptyImage = errors.New("image data cannot be empty")
)
