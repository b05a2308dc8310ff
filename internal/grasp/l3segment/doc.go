// Package l3segment owns Layer 3 (Segmentation) of the grasp data model.
//
// Responsibilities: the forward-looking windowed dispersion signal of the
// cleaned reference coordinate, detection of the grasp phase from that
// signal, and mapping of the phase back onto the original frame sequence
// with lead-in and lead-out padding.
// Key types: Params, Phase, Bounds, Segmentation.
//
// Dependency rule: L3 may depend on L1-L2.
// No SQL/database code is allowed in this package.
package l3segment
