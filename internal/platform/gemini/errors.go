package gemini

import "errors"

// ErrEmptyPaperText is returned when there is no text to analyze.
var ErrEmptyPaperText = errors.New("paper text cannot be empty")
