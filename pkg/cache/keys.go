package cache

// Keyer derives cache keys.
type Keyer interface {
	// SourceKey is the key for a fetched collection at location.
	SourceKey(location string) string
}

// DefaultKeyer hashes locations under a "source" prefix.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// SourceKey returns "source:<sha256(location)>".
func (DefaultKeyer) SourceKey(location string) string {
	return hashKey("source", location)
}

// ScopedKeyer wraps a Keyer with a prefix, so that several datasets or
// deployments can share one backend.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SourceKey returns the prefixed inner key.
func (k *ScopedKeyer) SourceKey(location string) string {
	return k.prefix + k.inner.SourceKey(location)
}
