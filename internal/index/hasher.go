package index

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// Digest accumulates content written to it.
type Digest interface {
	io.Writer
	// Hex returns the fixed-length lowercase hex digest of everything written.
	Hex() string
}

// Hasher produces content digests. Identical bytes always give identical
// digests, regardless of path or metadata.
type Hasher interface {
	New() Digest
}

// XXHash fingerprints content with 64-bit xxHash. It is fast and
// non-cryptographic, so distinct content may collide.
type XXHash struct{}

func (XXHash) New() Digest { return &xxDigest{Digest: xxhash.New()} }

type xxDigest struct{ *xxhash.Digest }

func (d *xxDigest) Hex() string { return fmt.Sprintf("%x", d.Sum(nil)) }

// Sum hashes everything readable from r.
func Sum(h Hasher, r io.Reader) (string, error) {
	d := h.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return d.Hex(), nil
}

// countingWriter counts bytes on their way to w so the recorded size comes
// from the same read as the hash.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
