// Package scheduler runs part jobs with bounded concurrency, retries
// individual part failures with exponential backoff, and drives
// whole-transfer cancellation when a part fails terminally. Results are
// accumulated keyed by part number and returned in ascending order
// regardless of completion order.
package scheduler
