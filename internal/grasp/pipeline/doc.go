// Package pipeline runs movements through the grasp layers.
//
// Responsibilities: ordering the per-movement stages (clean, segment,
// engineer, summarise), classifying failures into skips and fatal
// errors, and fanning independent movements out over a bounded worker
// pool. Movements share no state, so results need no synchronisation
// beyond their slot in the output slice.
//
// Dependency rule: pipeline may depend on L1-L5 and config; nothing in
// L1-L5 may import pipeline. Persistence is reached only through Sink.
package pipeline
