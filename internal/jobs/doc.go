// Package jobs turns queued generation requests into versioned artifacts.
//
// Executions may be triggered redundantly and concurrently from independent
// processes. The job record is the only coordination point: the lock manager
// claims it with one conditional write, the appender pushes a version with
// another, and a failed attempt is finalized with a third that only succeeds
// for the execution still holding the lock. Nothing here relies on in-process
// locks, so any number of executors may run against the same store.
package jobs
