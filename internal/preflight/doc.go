// Package preflight provides readiness checks for the filesystem paths and
// external binaries reel depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to run when a check
//     fails, so capture sessions never start against an unwritable store.
//   - The CLI "reel status" command surfaces the same checks as advisory
//     output alongside dependency availability.
package preflight
