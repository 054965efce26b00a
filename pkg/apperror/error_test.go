package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without internal error",
			err:      NewNotFound("Node", "n1"),
			expected: "not_found: Node 'n1' not found",
		},
		{
			name:     "with internal error",
			err:      ErrDatabase.WithInternal(errors.New("connection refused")),
			expected: "database_error: Database operation failed (connection refused)",
		},
		{
			name:     "empty message",
			err:      ErrInvalid.WithMessage(""),
			expected: "invalid: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestCopiesDoNotMutateSentinels(t *testing.T) {
	cause := errors.New("boom")
	e := ErrConflict.WithMessage("type exists").WithInternal(cause).WithDetails(map[string]any{"value": "PERSON"})

	assert.Equal(t, "Resource already exists", ErrConflict.Message)
	assert.Nil(t, ErrConflict.Internal)
	assert.Nil(t, ErrConflict.Details)

	assert.Equal(t, "type exists", e.Message)
	assert.Equal(t, cause, errors.Unwrap(e))
	assert.Equal(t, "PERSON", e.Details["value"])
}

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		forbidden bool
		conflict  bool
		invalid   bool
	}{
		{name: "not found", err: NewNotFound("Type", "t1"), notFound: true},
		{name: "forbidden", err: NewForbidden("system type"), forbidden: true},
		{name: "conflict", err: NewConflict("duplicate"), conflict: true},
		{name: "invalid", err: NewInvalid("bad direction"), invalid: true},
		{name: "wrapped not found", err: fmt.Errorf("delete: %w", NewNotFound("Node", "x")), notFound: true},
		{name: "bad request is not invalid", err: NewBadRequest("bad json")},
		{name: "plain error", err: errors.New("x")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, IsNotFound(tt.err))
			assert.Equal(t, tt.forbidden, IsForbidden(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.invalid, IsInvalid(tt.err))
		})
	}
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", NewNotFound("Node", "n1"), http.StatusNotFound, "not_found"},
		{"forbidden", NewForbidden("nope"), http.StatusForbidden, "forbidden"},
		{"conflict", NewConflict("dup"), http.StatusConflict, "conflict"},
		{"invalid", NewInvalid("bad"), http.StatusBadRequest, "invalid"},
		{"wrapped", fmt.Errorf("ctx: %w", NewConflict("dup")), http.StatusConflict, "conflict"},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ToHTTPError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			errObj, ok := body["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, errObj["code"])
		})
	}
}

func TestToHTTPError_Details(t *testing.T) {
	_, body := ToHTTPError(NewInvalid("bad").WithDetails(map[string]any{"field": "strength"}))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, map[string]any{"field": "strength"}, errObj["details"])
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Cannot delete system types", Message(NewForbidden("Cannot delete system types")))
	assert.Equal(t, "Database operation failed", Message(ErrDatabase.WithInternal(errors.New("pq: boom"))))
	assert.Equal(t, ErrInternal.Message, Message(errors.New("raw")))
}
