// Package identity stores user accounts and bearer tokens and resolves a token to the calling user.
//
// Accounts and tokens live in SQLite. Passwords are kept as bcrypt hashes. Login hands out an
// opaque random token of which only the SHA-256 digest is persisted, so a leaked database does
// not leak usable tokens. Resolve results are cached in an expirable LRU; Logout revokes all
// tokens of a user and evicts them from the cache.
package identity
