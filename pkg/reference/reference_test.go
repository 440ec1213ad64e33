package reference

import (
	"testing"

	"github.com/papermake/papermake/pkg/digest"
	"github.com/papermake/papermake/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameOnlyDefaultsToLatest(t *testing.T) {
	r, err := Parse("invoice")
	require.NoError(t, err)
	assert.Nil(t, r.Namespace)
	assert.Equal(t, "invoice", r.Name)
	require.NotNil(t, r.Tag)
	assert.Equal(t, "latest", *r.Tag)
	assert.Nil(t, r.Digest)
}

func TestParseNamespaceAndTag(t *testing.T) {
	r, err := Parse("acme/invoice:v1.2.0")
	require.NoError(t, err)
	require.NotNil(t, r.Namespace)
	assert.Equal(t, "acme", *r.Namespace)
	assert.Equal(t, "invoice", r.Name)
	require.NotNil(t, r.Tag)
	assert.Equal(t, "v1.2.0", *r.Tag)
}

func TestParseWithDigest(t *testing.T) {
	d := digest.Of([]byte("x"))
	r, err := Parse("acme/invoice:latest@" + d.String())
	require.NoError(t, err)
	require.NotNil(t, r.Digest)
	assert.True(t, r.Digest.Equal(d))
}

func TestParseDigestOnlyHasNilTag(t *testing.T) {
	d := digest.Of([]byte("x"))
	r, err := Parse("acme/invoice@" + d.String())
	require.NoError(t, err)
	assert.Nil(t, r.Tag)
	require.NotNil(t, r.Digest)
}

func TestParseRejectsMalformedDigest(t *testing.T) {
	_, err := Parse("invoice@sha256:not-hex")
	assert.Equal(t, errs.InvalidReference, errs.KindOf(err))
}

func TestParseRejectsEmptyNamespace(t *testing.T) {
	_, err := Parse("/invoice")
	assert.Equal(t, errs.InvalidReference, errs.KindOf(err))
}

func TestParseRejectsUppercaseName(t *testing.T) {
	_, err := Parse("Invoice")
	assert.Equal(t, errs.InvalidReference, errs.KindOf(err))
}

func TestStringRoundTrip(t *testing.T) {
	r, err := Parse("acme/invoice:v1")
	require.NoError(t, err)
	assert.Equal(t, "acme/invoice:v1", r.String())
}

func TestIsImmutableTag(t *testing.T) {
	assert.True(t, IsImmutableTag("v1"))
	assert.True(t, IsImmutableTag("v1.2"))
	assert.True(t, IsImmutableTag("v1.2.3"))
	assert.True(t, IsImmutableTag("v1.2.3-rc1"))
	assert.False(t, IsImmutableTag("latest"))
	assert.False(t, IsImmutableTag("stable"))
}

func TestRefKeyWithAndWithoutNamespace(t *testing.T) {
	r, err := Parse("acme/invoice:v1")
	require.NoError(t, err)
	assert.Equal(t, "refs/acme/invoice/v1", r.RefKey())

	r2, err := Parse("invoice:v1")
	require.NoError(t, err)
	assert.Equal(t, "refs/invoice/v1", r2.RefKey())
}
