// Package models holds the data types shared across the pipeline: the
// probe of a source file, the planned variants, per-variant and per-job
// results, and the job record with its status machine.
package models
