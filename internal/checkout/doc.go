// Package checkout implements the check-out / check-in lock protocol.
//
// A Service is bound to one session. Checkout verifies, in order, that the
// acting user may force when force was asked for, that the target is not
// already locked, that no Folder or Project above it is locked, and that
// nothing below it is locked. Only then does it optionally sync content down
// and write the three lock annotations in one store. Checkin verifies the
// lock exists and belongs to the acting user, optionally uploads local
// changes, and clears the annotations.
//
// Every refusal returns before any annotation is written. With force, an
// administrator turns each refusal into a Warning on the Result instead.
//
// Ownership and force decisions always use the entity as fetched from the
// repository, never an index row.
package checkout
