// Package store defines the storage interfaces the analysis pipeline depends on.
// Implementations live under internal/platform.
package store
