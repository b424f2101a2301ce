// Package events carries task progress from the orchestrator to the client.
//
// The primary components are:
// - ProgressEvent: one frame of the progress stream
// - Sink: the transport a stream is written to (SSE writer, in-memory recorder)
// - Streamer: wraps one task and one sink, and guarantees that nothing is sent
// after close or cancellation and that exactly one terminal event is produced
package events
