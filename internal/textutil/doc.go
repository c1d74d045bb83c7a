// Package textutil provides small text helpers shared across the CLI and
// export paths: filename sanitization for user-supplied recording names and
// a generic conditional helper for terse rendering code.
package textutil
