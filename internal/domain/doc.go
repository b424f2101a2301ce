// Package domain defines the core types of the document analysis pipeline:
// the task status state machine, submitted documents, parse results,
// extracted artifacts and the paper analysis summary, plus the shared
// error taxonomy. It has no dependencies on other internal packages.
package domain
