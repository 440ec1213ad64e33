package manifest

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/errs"
	"golang.org/x/text/unicode/norm"
)

func normalizeNFC(s string) string {
	return norm.NFC.String(s)
}

const (
	maxPathBytes     = 512
	maxMetadataField = 200
)

// TemplateMetadata is the human-oriented descriptor carried by a manifest.
// Name and Author are required by §3; Extra holds opaque additional
// fields a caller may attach.
type TemplateMetadata struct {
	Name   string                 `json:"name"`
	Author string                 `json:"author"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Manifest is the tuple (entrypoint, files, metadata) from spec §3. Files
// maps a logical path to the digest of its blob.
type Manifest struct {
	Entrypoint string                   `json:"entrypoint"`
	Files      map[string]digest.Digest `json:"files"`
	Metadata   TemplateMetadata         `json:"metadata"`
}

// jsonManifest mirrors Manifest but with digests as their textual form, so
// encoding/json round-trips without a custom MarshalJSON on digest.Digest.
type jsonManifest struct {
	Entrypoint string            `json:"entrypoint"`
	Files      map[string]string `json:"files"`
	Metadata   TemplateMetadata  `json:"metadata"`
}

// Encode serializes m to its canonical bytes. The digest of the returned
// bytes is the manifest digest (spec §3).
func Encode(m Manifest) ([]byte, error) {
	files := make(map[string]string, len(m.Files))
	for path, d := range m.Files {
		files[path] = d.String()
	}
	raw, err := json.Marshal(jsonManifest{
		Entrypoint: m.Entrypoint,
		Files:      files,
		Metadata:   m.Metadata,
	})
	if err != nil {
		return nil, errs.Newf(errs.InvalidManifest, "encoding manifest: %v", err).Wrap(err)
	}
	return Canonicalize(raw)
}

// Decode parses canonical bytes into a Manifest and validates it per §4.3.
func Decode(data []byte) (Manifest, error) {
	var jm jsonManifest
	if err := json.Unmarshal(data, &jm); err != nil {
		return Manifest{}, errs.Newf(errs.InvalidManifest, "decoding manifest: %v", err).Wrap(err)
	}

	files := make(map[string]digest.Digest, len(jm.Files))
	for path, s := range jm.Files {
		d, err := digest.Parse(s)
		if err != nil {
			return Manifest{}, errs.Newf(errs.InvalidManifest, "file %q has malformed digest: %v", path, err).Wrap(err)
		}
		files[path] = d
	}

	m := Manifest{Entrypoint: jm.Entrypoint, Files: files, Metadata: jm.Metadata}
	if err := Validate(m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate enforces §4.3's decode-time rules.
func Validate(m Manifest) error {
	if len(m.Files) == 0 {
		return errs.New(errs.InvalidManifest, "files must be non-empty")
	}
	if m.Entrypoint == "" {
		return errs.New(errs.InvalidManifest, "entrypoint must be present")
	}
	if _, ok := m.Files[m.Entrypoint]; !ok {
		return errs.Newf(errs.InvalidManifest, "entrypoint %q is not among files", m.Entrypoint)
	}

	for path := range m.Files {
		if err := ValidatePath(path); err != nil {
			return errs.Newf(errs.InvalidManifest, "file path %q: %v", path, err).Wrap(err)
		}
	}

	if err := validateMetadata(m.Metadata); err != nil {
		return err
	}
	return nil
}

func validateMetadata(md TemplateMetadata) error {
	if md.Name == "" || len(md.Name) > maxMetadataField {
		return errs.Newf(errs.InvalidManifest, "metadata.name must be 1..%d bytes", maxMetadataField)
	}
	if md.Author == "" || len(md.Author) > maxMetadataField {
		return errs.Newf(errs.InvalidManifest, "metadata.author must be 1..%d bytes", maxMetadataField)
	}
	if !utf8.ValidString(md.Name) || !utf8.ValidString(md.Author) {
		return errs.New(errs.InvalidManifest, "metadata.name and metadata.author must be valid UTF-8")
	}
	return nil
}

// ValidatePath enforces the File Entry path rules of §3: POSIX-relative,
// '/'-separated, no leading '/', no "..", no backslashes, no empty
// segments, at most 512 bytes.
func ValidatePath(path string) error {
	if path == "" {
		return errs.New(errs.InvalidManifest, "path must be non-empty")
	}
	if len(path) > maxPathBytes {
		return errs.Newf(errs.InvalidManifest, "path exceeds %d bytes", maxPathBytes)
	}
	if strings.HasPrefix(path, "/") {
		return errs.New(errs.InvalidManifest, "path must not have a leading '/'")
	}
	if strings.Contains(path, "\\") {
		return errs.New(errs.InvalidManifest, "path must not contain backslashes")
	}
	segments := strings.Split(path, "/")
	for _, seg := range segments {
		if seg == "" {
			return errs.New(errs.InvalidManifest, "path must not contain empty segments")
		}
		if seg == ".." {
			return errs.New(errs.InvalidManifest, "path must not contain \"..\" segments")
		}
	}
	if !utf8.ValidString(path) {
		return errs.New(errs.InvalidManifest, "path must be valid UTF-8")
	}
	if path != normalizeNFC(path) {
		return errs.New(errs.InvalidManifest, "path must be NFC-normalized")
	}
	return nil
}

// SortedPaths returns the manifest's file paths in lexicographic order,
// matching the canonical encoding's key order.
func SortedPaths(m Manifest) []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
