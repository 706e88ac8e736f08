// Package spatialmath defines the planar and rigid poses, axis aligned bounds and angle helpers
// used by mapping and planning.
package spatialmath
