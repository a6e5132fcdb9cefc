// Package retry provides bounded retry logic for transient failures.
//
// A [Policy] describes how many times an operation is retried and how long to wait
// between attempts (fixed delay when Multiplier is 1, exponential otherwise).
// [WithExponentialBackoff] is the option-based shorthand used for cloud API calls.
// Errors wrapped with [Fatal] are never retried.
package retry
