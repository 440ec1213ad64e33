package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New(Corrupt, "cause1")
	e2 := New(StorageUnavailable, "cause2").Wrap(e1)
	e := New(InvalidManifest, "dummy").Wrap(e2)

	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.Equal(t, InvalidManifest, e.Kind())
	assert.Equal(t, InvalidManifest, KindOf(e))
}

func TestKindOfNonPapermakeError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }

func TestNewCompileFailedCarriesDiagnostics(t *testing.T) {
	path := "main.typ"
	line := 12
	e := NewCompileFailed(SyntaxError, []Diagnostic{
		{Message: "unexpected token", Path: &path, Line: &line},
	})

	assert.Equal(t, CompileFailed, e.Kind())
	assert.Equal(t, SyntaxError, e.SubKind())
	require.Len(t, e.Diagnostics(), 1)
	assert.Equal(t, "unexpected token", e.Diagnostics()[0].Message)
}
