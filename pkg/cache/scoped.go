package cache

// ScopedKeyer namespaces the keys of another Keyer. The CLI uses it when
// artifacts go to a Redis instance that other tools also write to.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "beadring:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns a Keyer that prepends prefix to every key. A nil
// inner keyer falls back to [NewDefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// Prefix returns the namespace prepended to keys.
func (k *ScopedKeyer) Prefix() string { return k.prefix }

func (k *ScopedKeyer) ArtifactKey(fingerprint string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(fingerprint, opts)
}
