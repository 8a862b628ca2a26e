// Package pool provides memory management optimizations.
// Downloaded parts are staged in pooled buffers before being flushed in
// order, so steady-state transfers reuse allocations instead of growing
// the heap by one part-sized buffer per range.
package pool
