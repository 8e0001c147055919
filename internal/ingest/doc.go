// Package ingest turns source documents into the normalized text the pipeline
// consumes. It reads plain text and Markdown directly, pulls visible text out
// of HTML, unpacks the document body from DOCX archives, and extracts text
// from PDFs.
//
// Ingestion is a submission-time concern: the CLI and the AMQP intake both run
// it before a job row exists, so every rejection (unsupported extension,
// oversized file, empty text) is a validation error and never creates a job.
package ingest
