// Package services defines shared utilities consumed by the batch operations
// and the recognition service integration.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, operation names, image filenames and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (fatal to a run vs. recorded against one item).
//
// Use these helpers when wiring new batch logic so error handling and
// observability stay uniform across identify, rename and group.
package services
