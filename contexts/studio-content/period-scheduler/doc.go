// Package periodscheduler advances voting periods on a tick cadence, tallies
// closed periods, and hands winning submissions to the production pipeline.
//
// Closure idempotency relies on a single conditional update of is_processed;
// every other side effect of a closure happens only after that claim is won,
// so redundant or overlapping ticks never double-process a period.
package periodscheduler
