package identity

// WithAfterTokenLookup runs hook between the token read and the cache add of a Resolve.
func WithAfterTokenLookup(hook func()) Option {
	return func(s *Store) {
		s.afterLookup = hook
	}
}
