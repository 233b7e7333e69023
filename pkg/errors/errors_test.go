package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	e := New(IllFormedFeature, "axis of %s is zero", "face:3")
	assert.Equal(t, "IllFormedFeature: axis of face:3 is zero", e.Error())

	d := e.WithDetail("solid %s", "plate")
	assert.Equal(t, "IllFormedFeature: axis of face:3 is zero: solid plate", d.Error())
	assert.Empty(t, e.Detail, "WithDetail must not modify the receiver")
}

func TestWrapAndClassify(t *testing.T) {
	cause := fmt.Errorf("marching cubes exploded")
	err := Wrap(cause, GeometryKernelFailure, "intersect %s/%s", "a", "b")
	require.NotNil(t, err)

	wrapped := fmt.Errorf("attempt 2: %w", err)
	assert.Equal(t, GeometryKernelFailure, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, GeometryKernelFailure))
	assert.False(t, HasCode(wrapped, NoValidAlignment))
	assert.True(t, stderrors.Is(wrapped, cause))

	assert.Nil(t, Wrap(nil, GeometryKernelFailure, "nothing"))
	assert.Equal(t, Code(""), CodeOf(cause))
}
