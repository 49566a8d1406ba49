// Package organizer applies ledger results to the image collection on disk.
//
// Renamer embeds a label prefix and the accepted species into each file name
// following the convention <prefix>_<species>_<stem><ext>. Grouper moves
// files into one subdirectory per species, reading the species either from
// that naming convention or from a ledger. Both operations are per-file
// atomic, never overwrite or delete a file, and are idempotent: running them
// again over their own output changes nothing.
package organizer
