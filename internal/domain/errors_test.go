package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("socket closed")
	notFound := NewError(ErrNotFound, "user does not exist")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "plain kind", err: NewError(ErrConflict, "username already exists"), want: ErrConflict},
		{name: "wrapped cause", err: Wrap(ErrUpstream, "credential store failure", cause), want: ErrUpstream},
		{name: "outer kind wins", err: Wrap(ErrUnauthorized, "invalid refresh token", notFound), want: ErrUnauthorized},
		{name: "fmt wrapped", err: fmt.Errorf("login: %w", notFound), want: ErrNotFound},
		{name: "bare sentinel", err: ErrValidation, want: ErrValidation},
		{name: "unknown error", err: cause, want: ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.want))
		})
	}
}

func TestIsKind_IgnoresTranslatedInnerKind(t *testing.T) {
	err := Wrap(ErrUnauthorized, "invalid refresh token", NewError(ErrNotFound, "user does not exist"))

	assert.True(t, IsKind(err, ErrUnauthorized))
	assert.False(t, IsKind(err, ErrNotFound))
	assert.False(t, IsKind(nil, ErrInternal))
	assert.Equal(t, "invalid refresh token", MessageOf(err))
}
