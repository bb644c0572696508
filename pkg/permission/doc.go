// Package permission implements fine-grained, per-resource access
// control with an ordered level ladder.
//
// Every protected resource owns exactly one permission row holding a
// public level and an organization level, plus optional per-user and
// per-group overrides. A user's effective level on a resource is the
// maximum across all applicable scopes; resource creators and admins
// hold OWNER implicitly.
//
// The ladder, lowest to highest:
//
//	NONE < LIST < READ < READ_DATA < WRITE < WRITE_DATA < SHARE < OWNER
//
// Named checks map onto minimum levels: list, read, read_data, edit,
// edit_data, share and delete. Delete requires OWNER.
//
// Per-resource-type defaults and the levels each scope may be set to
// live in the Policy catalog, optionally overridden from a YAML file.
// Committed ACL writes are published through a Registry so caches can
// invalidate.
package permission
