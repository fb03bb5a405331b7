// Package logs reads the daemon log files for the CLI.
//
// Tail returns the last lines of a file together with the byte offset where
// reading stopped; passing that offset back in Follow mode streams only new
// lines. Memory stays bounded by the requested line count.
package logs
