// Package checksum detects source drift and per-part transfer corruption.
// A snapshot of the source's size and fingerprint is taken at plan time;
// every part attempt re-validates against it so a transfer can never complete
// against silently mutated data.
package checksum
