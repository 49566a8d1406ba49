// Package main hosts the flora CLI entrypoint and command graph.
//
// Each subcommand maps onto one batch operation: identify a directory of
// photographs, rename or group files from the resulting ledger, transform a
// ledger into a species summary, and maintain the configuration and the
// recognition cache. Progress is printed as it happens and every batch ends
// with a summary table, or a JSON report with --json.
package main
