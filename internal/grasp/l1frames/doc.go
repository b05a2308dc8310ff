// Package l1frames owns Layer 1 (Frames) of the grasp data model.
//
// Responsibilities: the timestamped keypoint sequence captured for one
// movement (RawFrame / Sequence), joint and axis naming, and decoding of
// the per-movement CSV export produced by the pose estimator.
// Key types: Keypoint, Frame, Sequence.
//
// Dependency rule: L1 depends on no other grasp layer.
// No SQL/database code is allowed in this package.
package l1frames
