// Package textutil provides filename sanitization helpers shared by the
// organizer and the CLI.
package textutil
