// Package digest implements the content-addressing scheme shared by every
// blob, manifest and ref in papermake: the SHA-256 of exact bytes, rendered
// as sha256:<64 lowercase hex>. This mirrors the role pkg/cafs.Key plays
// in the teacher, but is flat rather than chunked: papermake addresses
// whole files and whole manifests, never merkle-tree leaves.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/papermake/papermake/pkg/errs"
)

const (
	algoPrefix = "sha256:"
	hexLen     = 64
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Digest identifies content by the SHA-256 hash of its exact bytes.
type Digest struct {
	hex string
}

// Zero reports whether d is the unset Digest.
func (d Digest) Zero() bool { return d.hex == "" }

// String renders the canonical textual form: sha256:<64 lowercase hex>.
func (d Digest) String() string {
	if d.hex == "" {
		return ""
	}
	return algoPrefix + d.hex
}

// Hex returns the bare 64 lowercase hex characters, without the algorithm
// prefix. Used to build storage keys.
func (d Digest) Hex() string { return d.hex }

// Equal reports whether two digests address the same bytes.
func (d Digest) Equal(other Digest) bool { return d.hex == other.hex }

// Of computes the digest of b.
func Of(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest{hex: hex.EncodeToString(sum[:])}
}

// Parse accepts only the canonical "sha256:<64 lowercase hex>" form.
// Uppercase hex, other algorithms, and malformed strings are rejected with
// InvalidReference, per spec §4.1.
func Parse(s string) (Digest, error) {
	if len(s) != len(algoPrefix)+hexLen || s[:len(algoPrefix)] != algoPrefix {
		return Digest{}, errs.Newf(errs.InvalidReference, "malformed digest %q", s)
	}
	h := s[len(algoPrefix):]
	if !hexPattern.MatchString(h) {
		return Digest{}, errs.Newf(errs.InvalidReference, "malformed digest %q", s)
	}
	return Digest{hex: h}, nil
}

// BlobKey returns the storage key under which a blob addressed by d lives.
func BlobKey(d Digest) string {
	return "blobs/sha256/" + d.hex
}

// ManifestKey returns the storage key under which a manifest addressed by
// d lives.
func ManifestKey(d Digest) string {
	return "manifests/sha256/" + d.hex
}
