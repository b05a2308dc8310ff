// Package l4kinematics owns Layer 4 (Kinematics) of the grasp data model.
//
// Responsibilities: per-frame kinematic descriptors of a segmented
// movement (fingertip apertures, wrist coordinates, windowed wrist
// dispersion, wrist speed) and the normalised movement-completion time
// axis. Noisy source keypoints turn derived values into missing values
// instead of removing frames, so every column stays frame-aligned.
// Key types: Feature, Value, Table.
//
// Dependency rule: L4 may depend on L1-L3.
// No SQL/database code is allowed in this package.
package l4kinematics
