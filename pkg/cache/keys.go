package cache

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey returns the key for an encoded render of the bead list
	// with the given fingerprint.
	ArtifactKey(fingerprint string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the render options that change the encoded output.
type ArtifactKeyOpts struct {
	Mode    string  `json:"mode"`
	Spacing float64 `json:"spacing"`
	Size    int     `json:"size"`
	Scale   float64 `json:"scale"`
	Format  string  `json:"format"`
	Quality int     `json:"quality"`
}

// DefaultKeyer hashes the fingerprint together with the options.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ArtifactKey implements [Keyer].
func (DefaultKeyer) ArtifactKey(fingerprint string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", fingerprint, opts)
}
