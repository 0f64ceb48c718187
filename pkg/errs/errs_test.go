package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidArgument(t *testing.T) {
	err := InvalidArgument("latitude", "%v out of range", 91.0)

	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.EqualError(t, err, "invalid argument: latitude: 91 out of range")

	field, ok := Field(err)
	assert.True(t, ok)
	assert.Equal(t, "latitude", field)
}

func TestFieldOnOtherErrors(t *testing.T) {
	_, ok := Field(errors.New("boom"))
	assert.False(t, ok)
}

func TestStorage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("scan range", cause)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "scan range")
	assert.NoError(t, Storage("noop", nil))
}
