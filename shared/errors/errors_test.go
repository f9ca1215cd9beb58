package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NotFound("board", "ANN1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrNameConflict))

	wrapped := fmt.Errorf("resolve: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Board 'ANN1' not found", NotFound("board", "ANN1").Error())
	assert.Equal(t, "Order 3 is already taken by another board", OrderConflict("board", "3").Error())
	assert.Equal(t, "EmptySelector", (&Error{Kind: KindEmptySelector}).Error())
	assert.Equal(t, "NoMatches: post '9'", (&Error{Kind: KindNoMatches, Resource: "post", Value: "9"}).Error())
}

func TestKindStatusCode(t *testing.T) {
	testCases := []struct {
		kind Kind
		want int
	}{
		{KindPermissionDenied, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindNoMatches, http.StatusNotFound},
		{KindNameConflict, http.StatusConflict},
		{KindOrderConflict, http.StatusConflict},
		{KindMandatoryBoard, http.StatusConflict},
		{KindInvalidName, http.StatusBadRequest},
		{KindEmptySelector, http.StatusBadRequest},
		{KindUnknown, http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.kind.StatusCode())
		})
	}
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestParseKind(t *testing.T) {
	for k := KindPermissionDenied; k <= KindAmbiguous; k++ {
		got, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("Bogus")
	assert.False(t, ok)
}
