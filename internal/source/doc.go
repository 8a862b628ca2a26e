// Package source unifies in-memory buffers and file-backed regions behind one
// read interface. A source's size and content fingerprint are fixed at open
// time; range readers over the source are restartable and bounded, so a part
// job can be retried without re-reading unrelated parts.
package source
