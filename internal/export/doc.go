// Package export renders conversation transcripts for download, as
// plain Markdown or as a standalone HTML page. Only settled messages
// are included; pending and errored ones are skipped.
package export
