// Package api exposes the document analysis service over HTTP: the streaming
// and blocking analysis endpoints, task control, artifact retrieval and
// service status. Handlers translate requests into analysis runs and map
// domain errors to status codes.
package api
