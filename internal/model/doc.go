// Package model defines the data structures shared across queuelab.
//
// This package contains the following main types:
//   - RunReport: The result of one verification scenario run
//   - StepResult: The outcome of a single pipeline step
//   - Artifact: A screenshot or processed image written to disk
//   - RunSummary: Aggregate counts over a batch of runs
//   - AssetReport: The result of an asset preprocessing run
//
// Models live in their own package so that the pipeline, database and report
// packages can share them without import cycles. All of them serialize to
// JSON for report output and history storage.
package model
