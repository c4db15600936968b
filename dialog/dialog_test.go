package dialog_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/dialog"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestShowReplacesVisibleDialog(t *testing.T) {
	p := dialog.NewPresenter()
	p.Show(dialog.Alert("First", "one"))
	id := p.Show(dialog.Alert("Second", "two"))

	current, ok := p.Current()
	require.True(t, ok)
	require.Equal(t, id, current.ID)
	require.Equal(t, "Second", current.Title)
	require.Equal(t, "two", current.Message)

	require.NoError(t, p.Press(dialog.ButtonPrimary))
	require.False(t, p.Visible())
}

func TestPressRunsHandlerAfterHiding(t *testing.T) {
	p := dialog.NewPresenter()
	confirmed := false
	p.Show(dialog.Confirm("Logout", "Are you sure?", "Logout", func() {
		confirmed = true
		p.Show(dialog.Alert("Bye", "Logged out"))
	}))

	require.NoError(t, p.Press(dialog.ButtonPrimary))
	require.True(t, confirmed)
	current, ok := p.Current()
	require.True(t, ok)
	require.Equal(t, "Bye", current.Title)
}

func TestPressErrors(t *testing.T) {
	p := dialog.NewPresenter()
	require.ErrorIs(t, p.Press(dialog.ButtonPrimary), dialog.ErrNoDialog)

	p.Show(dialog.Alert("Title", "msg"))
	require.ErrorIs(t, p.Press(dialog.ButtonSecondary), dialog.ErrNoSecondary)
	require.True(t, p.Visible())
	require.ErrorIs(t, p.Press(dialog.ButtonKind(7)), dialog.ErrUnknownButton)
}

func TestSecondaryButton(t *testing.T) {
	p := dialog.NewPresenter()
	confirmed := false
	p.Show(dialog.Confirm("Delete", "Delete CV?", "Delete", func() { confirmed = true }))
	require.NoError(t, p.Press(dialog.ButtonSecondary))
	require.False(t, confirmed)
	require.False(t, p.Visible())
}

func TestSubscribe(t *testing.T) {
	p := dialog.NewPresenter()
	var seen []string
	unsubscribe := p.Subscribe(func(r *dialog.Request) {
		if r == nil {
			seen = append(seen, "hidden")
			return
		}
		seen = append(seen, r.Title)
	})

	p.Show(dialog.Alert("A", ""))
	p.Show(dialog.Alert("B", ""))
	p.Dismiss()
	p.Dismiss()
	unsubscribe()
	p.Show(dialog.Alert("C", ""))

	require.Equal(t, []string{"A", "B", "hidden"}, seen)
}

func TestFromError(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		req, ok := dialog.FromError("Login", interrors.Validation("Please enter your email"))
		require.True(t, ok)
		require.Equal(t, "Please enter your email", req.Message)
	})

	t.Run("api failure", func(t *testing.T) {
		req, ok := dialog.FromError("Login", &apiclient.Error{StatusCode: 401, Message: "Invalid email or password"})
		require.True(t, ok)
		require.Equal(t, "Invalid email or password", req.Message)
	})

	t.Run("network failure", func(t *testing.T) {
		req, ok := dialog.FromError("Login", &apiclient.Error{Err: errors.New("dial tcp: refused")})
		require.True(t, ok)
		require.Contains(t, req.Message, "Unable to reach the server")
	})

	t.Run("session invalidated", func(t *testing.T) {
		_, ok := dialog.FromError("Session", fmt.Errorf("verify: %w", interrors.ErrSessionInvalidated))
		require.False(t, ok)
	})

	t.Run("nil", func(t *testing.T) {
		_, ok := dialog.FromError("x", nil)
		require.False(t, ok)
	})
}
