// Package updatebook implements the Update Book use case.
//
// Only the fields present in the patch are changed. The patch is validated before
// anything is loaded, and applied with a compare-and-set on the book version, retried
// on concurrency conflicts. A patch that changes nothing and brings no new image is an
// idempotent success without a write.
//
// When a new image replaces the old one, the old image is released after the commit.
// When the update fails, the newly stored image is released instead.
package updatebook
