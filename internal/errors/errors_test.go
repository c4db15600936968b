package errors_test

import (
	"errors"
	"testing"

	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestInvalidKeepsBothSentinels(t *testing.T) {
	err := interrors.Invalid(interrors.ErrInvalidEmail)
	require.ErrorIs(t, err, interrors.ErrValidation)
	require.ErrorIs(t, err, interrors.ErrInvalidEmail)
}

func TestValidationMessage(t *testing.T) {
	msg, ok := interrors.ValidationMessage(interrors.Validation("first and last name are required"))
	require.True(t, ok)
	require.Equal(t, "first and last name are required", msg)

	wrapped := pkgerrors.Wrap(interrors.Invalid(interrors.ErrEmailRequired), "[Controller.Login] validate")
	msg, ok = interrors.ValidationMessage(wrapped)
	require.True(t, ok)
	require.Equal(t, "email is required", msg)

	_, ok = interrors.ValidationMessage(errors.New("connection refused"))
	require.False(t, ok)
	_, ok = interrors.ValidationMessage(nil)
	require.False(t, ok)
}
