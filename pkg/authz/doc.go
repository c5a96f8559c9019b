// Package authz implements the small ordered capability lattice used to
// gate access to shared resources: view < edit < full.
//
// Levels are a closed enum internally and serialize to compact string codes
// only at the storage boundary, with exhaustive matching so a new level is a
// compile-time-visible change everywhere it matters.
//
// Authorization for any shared-resource operation is:
//
//	is_owner OR is_admin OR (share exists AND predicate(share.level))
//
// The package is a pure function set; the share record itself is persisted
// by the storage layer, which also enforces (resource, grantee) uniqueness
// with a database constraint.
package authz
