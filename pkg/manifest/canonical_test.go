package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeys(t *testing.T) {
	out, err := Canonicalize([]byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1}`, string(out))
}

func TestCanonicalizeStripsWhitespace(t *testing.T) {
	out, err := Canonicalize([]byte(`{ "a" :  1 , "b":  [1, 2,3] }`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":[1,2,3]}`, string(out))
}

func TestCanonicalizeRejectsDuplicateKeys(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":1,"a":2}`))
	assert.Error(t, err)
}

func TestCanonicalizeIntegerHasNoDecimalPoint(t *testing.T) {
	out, err := Canonicalize([]byte(`{"n": 5.0}`))
	require.NoError(t, err)
	assert.Equal(t, `{"n":5}`, string(out))
}

func TestCanonicalizeFractionalShortestForm(t *testing.T) {
	out, err := Canonicalize([]byte(`{"n": 1.50000}`))
	require.NoError(t, err)
	assert.Equal(t, `{"n":1.5}`, string(out))
}

func TestCanonicalizeIsDeterministicAcrossKeyOrder(t *testing.T) {
	a, err := Canonicalize([]byte(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	b, err := Canonicalize([]byte(`{"a":2,"m":3,"z":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalizeNestedObjectsAndArrays(t *testing.T) {
	out, err := Canonicalize([]byte(`{"outer":{"b":1,"a":[3,2,1]}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"a":[3,2,1],"b":1}}`, string(out))
}

func TestCanonicalizeEscapesControlCharacters(t *testing.T) {
	out, err := Canonicalize([]byte(`{"s":"a\nb"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"s":"a\nb"}`, string(out))
}

func TestCanonicalizeRejectsTrailingContent(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":1} garbage`))
	assert.Error(t, err)
}

func TestCanonicalizeRejectsMalformedJSON(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestCanonicalizeAcceptsValidSurrogatePairEscape(t *testing.T) {
	// \ud83d\ude00 is a properly paired escape for U+1F600 GRINNING FACE.
	out, err := Canonicalize([]byte(`{"s":"\ud83d\ude00"}`))
	require.NoError(t, err)
	assert.Equal(t, "{\"s\":\"\U0001F600\"}", string(out))
}

func TestCanonicalizeRejectsLoneHighSurrogate(t *testing.T) {
	_, err := Canonicalize([]byte(`{"s":"\ud800"}`))
	assert.Error(t, err)
}

func TestCanonicalizeRejectsLoneLowSurrogate(t *testing.T) {
	_, err := Canonicalize([]byte(`{"s":"\udc00"}`))
	assert.Error(t, err)
}

func TestCanonicalizeRejectsHighSurrogateFollowedByNonSurrogate(t *testing.T) {
	_, err := Canonicalize([]byte(`{"s":"\ud800A"}`))
	assert.Error(t, err)
}

func TestCanonicalizeRejectsLoneSurrogateInObjectKey(t *testing.T) {
	_, err := Canonicalize([]byte(`{"\ud800":1}`))
	assert.Error(t, err)
}
