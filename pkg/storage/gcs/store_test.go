package gcs

import (
	"testing"

	"github.com/papermake/papermake/pkg/storage"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"
)

func TestToSentinelMapsNotFound(t *testing.T) {
	err := &googleapi.Error{Code: 404, Message: "not found"}
	assert.ErrorIs(t, toSentinel(err), storage.ErrNotFound)
}

func TestToSentinelMapsUnavailable(t *testing.T) {
	err := &googleapi.Error{Code: 503, Message: "down"}
	assert.ErrorIs(t, toSentinel(err), storage.ErrUnavailable)
}

func TestToSentinelPassesThroughUnknown(t *testing.T) {
	err := &googleapi.Error{Code: 418, Message: "teapot"}
	assert.Same(t, err, toSentinel(err))
}

func TestIsPreconditionFailed(t *testing.T) {
	err := &googleapi.Error{Code: 412, Message: "precondition failed"}
	assert.True(t, isPreconditionFailed(err))

	other := &googleapi.Error{Code: 500, Message: "boom"}
	assert.False(t, isPreconditionFailed(other))
}
