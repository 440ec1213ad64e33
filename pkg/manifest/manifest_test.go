package manifest

import (
	"testing"

	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleManifest() Manifest {
	return Manifest{
		Entrypoint: "main.typ",
		Files: map[string]digest.Digest{
			"main.typ":   digest.Of([]byte("main contents")),
			"assets/logo.png": digest.Of([]byte("logo bytes")),
		},
		Metadata: TemplateMetadata{Name: "invoice", Author: "acme"},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := sampleManifest()
	encoded, err := Encode(m)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, m.Entrypoint, decoded.Entrypoint)
	assert.Equal(t, m.Metadata, decoded.Metadata)
	assert.True(t, m.Files["main.typ"].Equal(decoded.Files["main.typ"]))
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := sampleManifest()
	a, err := Encode(m)
	require.NoError(t, err)
	b, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestValidateRejectsMissingEntrypoint(t *testing.T) {
	m := sampleManifest()
	m.Entrypoint = "other.typ"
	err := Validate(m)
	assert.Equal(t, errs.InvalidManifest, errs.KindOf(err))
}

func TestValidateRejectsEmptyFiles(t *testing.T) {
	m := Manifest{Entrypoint: "x", Metadata: TemplateMetadata{Name: "n", Author: "a"}}
	err := Validate(m)
	assert.Equal(t, errs.InvalidManifest, errs.KindOf(err))
}

func TestValidateRejectsBadMetadata(t *testing.T) {
	m := sampleManifest()
	m.Metadata.Name = ""
	err := Validate(m)
	assert.Equal(t, errs.InvalidManifest, errs.KindOf(err))
}

func TestValidatePathRejectsDotDot(t *testing.T) {
	err := ValidatePath("../escape")
	assert.Error(t, err)
}

func TestValidatePathRejectsLeadingSlash(t *testing.T) {
	err := ValidatePath("/abs/path")
	assert.Error(t, err)
}

func TestValidatePathRejectsBackslash(t *testing.T) {
	err := ValidatePath(`a\b`)
	assert.Error(t, err)
}

func TestValidatePathRejectsEmptySegment(t *testing.T) {
	err := ValidatePath("a//b")
	assert.Error(t, err)
}

func TestValidatePathAcceptsNormalRelativePath(t *testing.T) {
	assert.NoError(t, ValidatePath("assets/img/logo.png"))
}

func TestValidatePathRejectsNonNFCForm(t *testing.T) {
	// "cafe" + combining acute accent U+0301 (NFD), not the single
	// precomposed U+00E9 (NFC).
	nfd := "cafe\u0301.typ"
	err := ValidatePath(nfd)
	assert.Equal(t, errs.InvalidManifest, errs.KindOf(err))
}

func TestValidateRejectsNonNFCPathEvenWithoutCollision(t *testing.T) {
	nfd := "cafe\u0301.typ"
	m := Manifest{
		Entrypoint: nfd,
		Files: map[string]digest.Digest{
			nfd: digest.Of([]byte("contents")),
		},
		Metadata: TemplateMetadata{Name: "n", Author: "a"},
	}
	err := Validate(m)
	assert.Equal(t, errs.InvalidManifest, errs.KindOf(err))
}

func TestSortedPaths(t *testing.T) {
	m := sampleManifest()
	assert.Equal(t, []string{"assets/logo.png", "main.typ"}, SortedPaths(m))
}
