// Package ledger models the identification results CSV: one accepted species
// per image filename, kept in identification order.
//
// The on-disk form has the header filename,species_name,confidence_score.
// Loading is tolerant of column order, header case, surrounding whitespace and
// a UTF-8 byte order mark; saving always emits the canonical layout so a
// load/save round trip converges on a stable file. Saves are atomic: the file
// is either the previous version or the complete new one.
//
// A Lock guards the load, mutate, save sequence against a second run pointed at
// the same ledger.
package ledger
