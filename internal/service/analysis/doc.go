// Package analysis orchestrates one document analysis task: it drives the
// parse job in the background, relays its progress to the client on a
// heartbeat, runs the post-processing stages and delivers the final payload.
//
// Visible progress is split into disjoint bands per stage (see Remap) so the
// stream never moves backwards. Cancellation is cooperative and funnels
// through the task's context: an explicit cancel, a client disconnect and a
// failed write all end the run silently.
package analysis
