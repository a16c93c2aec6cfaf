package buf

const (
	DefaultSize   = 1024
	MaxPooledSize = 64 * 1024
)

func pooled(capacity int) bool {
	return capacity >= 1<<minPooledBits && capacity <= MaxPooledSize
}
