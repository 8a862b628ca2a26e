// Package validation provides centralized input validation logic.
// This includes object key validation, part limit validation, and
// security checks applied before any remote call is made.
package validation
