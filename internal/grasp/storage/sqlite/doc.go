// Package sqlite contains the SQLite repository for grasp summaries.
//
// All database read/write operations for runs, per-checkpoint summary
// records and skipped movements belong here rather than in the layer
// packages (L1-L5). This keeps the signal processing free of SQL noise
// and lets the batch driver persist through the pipeline.Sink interface.
package sqlite
