// Package identification runs a directory of photographs through the
// recognition service and records the accepted species per image in the
// results ledger.
//
// A run is strictly sequential: images are enumerated in lexicographic order
// and submitted one at a time. Per-image failures are collected in the Report
// and never stop the batch, with the exception of authentication failures,
// which end the run after persisting the rows produced so far. Cancellation is
// observed between images.
//
// Pipeline.Start dispatches the same run onto a goroutine and exposes its
// progress as a stream of Events so a caller can render them as they happen.
package identification
