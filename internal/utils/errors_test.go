package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	cause := errors.New("connection reset")
	cases := []struct {
		err  *AppError
		want string
	}{
		{&AppError{Op: "CVService.Get", Message: "failed to load cv", Err: cause}, "CVService.Get: failed to load cv: connection reset"},
		{&AppError{Op: "CVService.Get", Message: "cv not found"}, "CVService.Get: cv not found"},
		{&AppError{Message: "bad"}, "bad"},
		{&AppError{}, "error"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Error())
	}
}

func TestCodeOfAndStatus(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", E(CodeLimitReached, "CVService.Create", "cv limit reached", nil))

	cases := []struct {
		name   string
		err    error
		code   Code
		status int
	}{
		{"app error", E(CodeNotFound, "op", "missing", nil), CodeNotFound, http.StatusNotFound},
		{"wrapped app error", wrapped, CodeLimitReached, http.StatusUnprocessableEntity},
		{"sentinel not found", fmt.Errorf("repo: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{"sentinel duplicate", ErrDuplicate, CodeConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
		{"unavailable", E(CodeUnavailable, "op", "down", nil), CodeUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, CodeOf(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
			assert.True(t, IsCode(tc.err, tc.code))
		})
	}
	assert.False(t, IsCode(nil, CodeInternal))
}

func TestUnwrapKeepsCause(t *testing.T) {
	err := E(CodeInternal, "op", "failed", ErrNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, CodeInternal, CodeOf(err), "outermost code wins")
}
