package dedupe

// Option applies a configuration option to the fingerprint set.
type Option func(*fingerprintSet)

// WithMaxSize bounds the number of remembered fingerprints. A value <= 0
// keeps every fingerprint.
func WithMaxSize(maxSize int) Option {
	return func(d *fingerprintSet) {
		d.maxSize = maxSize
	}
}
