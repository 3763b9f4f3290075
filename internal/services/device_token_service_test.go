package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErrors "github.com/charlesng35/jobboard/pkg/errors"
)

func TestDeviceTokenServiceRegisterMovesTokenBetweenUsers(t *testing.T) {
	db := openServiceDB(t)
	svc, err := NewDeviceTokenService(db)
	require.NoError(t, err)
	ctx := context.Background()

	alice := createUser(t, db, "alice@example.com")
	bob := createUser(t, db, "bob@example.com")

	token, err := svc.Register(ctx, alice.ID, " fcm-token-1 ", "")
	require.NoError(t, err)
	require.Equal(t, "fcm-token-1", token.Token)
	require.Equal(t, "android", token.Platform)

	moved, err := svc.Register(ctx, bob.ID, "fcm-token-1", "iOS")
	require.NoError(t, err)
	require.Equal(t, token.ID, moved.ID)
	require.Equal(t, bob.ID, moved.UserID)
	require.Equal(t, "ios", moved.Platform)

	tokens, err := svc.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Empty(t, tokens)

	_, err = svc.Register(ctx, bob.ID, "fcm-token-2", "blackberry")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	require.ErrorIs(t, svc.Unregister(ctx, alice.ID, "fcm-token-1"), appErrors.ErrNotFound)
	require.NoError(t, svc.Unregister(ctx, bob.ID, "fcm-token-1"))
}
