package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusConflict},
		{CodeDuplication, http.StatusConflict},
		{CodeNotFound, http.StatusNotFound},
		{CodeUpdateFailure, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUnknown, http.StatusInternalServerError},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "Resource already exists.", Duplication("").Message)
	assert.Equal(t, "Resource does not exist.", NotFound("").Message)
	assert.Equal(t, "Unable to update document.", UpdateFailure("").Message)
	assert.Equal(t, "Shopping list does not exist.", NotFound("Shopping list does not exist.").Message)
}

func TestIs_MatchesByCode(t *testing.T) {
	err := NotFound("Item does not exist in shopping list")

	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrDuplication))

	wrapped := fmt.Errorf("service: %w", err)
	assert.True(t, Is(wrapped, ErrNotFound))
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := New("connection reset")
	err := Wrap(cause, CodeUpdateFailure, "Unable to update item")

	assert.Equal(t, "Unable to update item: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestPublicMessage_HidesUnknown(t *testing.T) {
	err := Unknown(New("mongo: server selection timeout"))

	assert.Equal(t, UnknownMessage, err.PublicMessage())
	assert.Equal(t, "Unable to update item", UpdateFailure("Unable to update item").PublicMessage())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeDuplication, CodeOf(fmt.Errorf("x: %w", Duplication(""))))
	assert.Equal(t, CodeUnknown, CodeOf(New("plain")))
}

func TestWithDetails(t *testing.T) {
	base := Validation("Item name is required.")
	detailed := base.WithDetails(map[string]string{"field": "name"})

	require.NotSame(t, base, detailed)
	assert.Nil(t, base.Details)
	assert.Equal(t, map[string]string{"field": "name"}, detailed.Details)
	assert.True(t, Is(detailed, ErrValidation))
}
