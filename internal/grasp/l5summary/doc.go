// Package l5summary owns Layer 5 (Summaries) of the grasp data model.
//
// Responsibilities: summarising each kinematic feature trajectory at
// fixed movement-completion checkpoints into fixed-layout numeric records,
// and assembling those records into classifier feature vectors.
// Key types: Statistic, FeatureStats, Record.
//
// Dependency rule: L5 may depend on L1-L4.
// No SQL/database code is allowed in this package.
package l5summary
