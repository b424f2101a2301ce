// Package payload turns an analysis result into the bounded JSON payload sent
// to clients. Text fields are cut to a byte budget on a rune boundary,
// artifacts are capped and replaced by URL references, and encoding falls
// back to a minimal payload when the full one cannot be marshalled.
package payload
