// Package planner computes part layouts for multipart transfers. Given a
// total size and the protocol's part limits it emits a contiguous,
// non-overlapping sequence of parts, or decides the transfer should be a
// single non-multipart operation.
package planner
