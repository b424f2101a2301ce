// Package parsejob defines the contract of the external document parse service
// and drives a single job through submission and a bounded poll loop, publishing
// progress through a lock-free Tracker.
package parsejob
