package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfAndHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		kind   Kind
		status int
	}{
		{New(InvalidArgument, "bad input"), InvalidArgument, http.StatusBadRequest},
		{New(NotFound, "missing"), NotFound, http.StatusNotFound},
		{New(Forbidden, "nope"), Forbidden, http.StatusForbidden},
		{New(Conflict, "taken"), Conflict, http.StatusConflict},
		{New(Internal, "boom"), Internal, http.StatusInternalServerError},
		{errors.New("plain"), Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, KindOf(c.err))
		assert.Equal(t, c.status, HTTPStatus(c.err))
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(Internal, "ignored", nil))

	cause := errors.New("dial tcp: refused")
	err := Wrap(Internal, "failed to connect", cause)
	require.Error(t, err)
	assert.Equal(t, Internal, KindOf(err))
	assert.ErrorIs(t, err, cause)
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Room not found", MessageOf(New(NotFound, "Room not found")))
	// Internal details never leak to clients.
	assert.Equal(t, "internal server error", MessageOf(errors.New("pk violation on users")))
}

func TestIs(t *testing.T) {
	err := Newf(NotFound, "room %s not found", "abc")
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Forbidden))
	assert.False(t, Is(nil, NotFound))
}
