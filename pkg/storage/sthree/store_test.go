package sthree

import (
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/papermake/papermake/pkg/storage"
	"github.com/stretchr/testify/assert"
)

type fakeRequestFailure struct {
	Err        awserr.Error
	statusCode int
}

func (f fakeRequestFailure) Error() string     { return f.Err.Error() }
func (f fakeRequestFailure) Code() string      { return f.Err.Code() }
func (f fakeRequestFailure) Message() string   { return f.Err.Message() }
func (f fakeRequestFailure) OrigErr() error    { return f.Err.OrigErr() }
func (f fakeRequestFailure) StatusCode() int   { return f.statusCode }
func (f fakeRequestFailure) RequestID() string { return "req-1" }

func TestIsNotFound(t *testing.T) {
	err := fakeRequestFailure{
		Err:        awserr.New("NotFound", "not found", nil),
		statusCode: 404,
	}
	assert.True(t, isNotFound(err))

	other := fakeRequestFailure{
		Err:        awserr.New("InternalError", "boom", nil),
		statusCode: 500,
	}
	assert.False(t, isNotFound(other))
}

func TestToSentinel(t *testing.T) {
	notFound := fakeRequestFailure{
		Err:        awserr.New("NotFound", "not found", nil),
		statusCode: 404,
	}
	assert.ErrorIs(t, toSentinel(notFound), storage.ErrNotFound)

	unavailable := fakeRequestFailure{
		Err:        awserr.New("ServiceUnavailable", "down", nil),
		statusCode: 503,
	}
	assert.ErrorIs(t, toSentinel(unavailable), storage.ErrUnavailable)

	assert.NoError(t, toSentinel(nil))
}
