// Package blobstore keeps book cover images on the filesystem under generated names.
//
// FileStore saves uploads as <uuid>.<ext>, opens them for serving and deletes them. Releaser
// deletes images that no book references anymore. It runs after the catalog mutation has
// committed, on background workers with their own retry policy, so a slow or failing
// filesystem never blocks or fails the mutation.
package blobstore
