// Package entity defines the data model shared by every syt component: the
// hierarchical entities stored in the remote repository, the lock record
// carried in their annotations, the index view shapes, and the ACL and
// profile types consulted by the permission oracle.
//
// # Lock Record
//
// A lock is three annotations on the entity:
//
//	_syt_by_id    id of the user who checked the entity out
//	_syt_by_name  that user's name
//	_syt_date     when the check-out happened
//
// An entity is locked iff _syt_by_id is present with a non-empty value.
// The keys are only ever written through [Entity.ApplyLock] and cleared
// through [Entity.ClearLock], so all three appear or disappear together.
//
// # Kinds
//
// [Kind] is closed over Project, Folder and File. Anything else a
// repository reports is [KindOther]; the raw type string is kept on the
// entity for error messages. Capability predicates ([Kind.Lockable],
// [Kind.Container], [Kind.Indexed]) replace ad hoc type comparisons.
package entity
