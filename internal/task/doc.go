// Package task tracks the lifecycle of document analysis requests.
// A Task carries status, progress and a cancellation token for one client
// request; the Registry indexes live tasks, enforces the active-task ceiling,
// and sweeps tasks that outlive twice the configured timeout.
package task
