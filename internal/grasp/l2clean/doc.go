// Package l2clean owns Layer 2 (Cleaning) of the grasp data model.
//
// Responsibilities: rejecting low-confidence and spatially discontinuous
// detections of a reference joint, and the neighbour-distance test later
// layers reuse to invalidate noisy derived values.
// Key types: Params, Cleaned.
//
// Dependency rule: L2 may depend on L1 only.
// No SQL/database code is allowed in this package.
package l2clean
