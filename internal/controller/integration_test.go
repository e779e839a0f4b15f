package controller

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"foodchat/internal/mockserver"
	"foodchat/internal/services"
	"foodchat/internal/storage"
	"foodchat/pkg/chattypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestController_AgainstMockBackends(t *testing.T) {
	backend := mockserver.New(mockserver.Config{TokenTTL: time.Minute, BcryptCost: bcrypt.MinCost})
	authServer := httptest.NewServer(backend.AuthHandler())
	defer authServer.Close()
	chatServer := httptest.NewServer(backend.ChatHandler())
	defer chatServer.Close()

	httpService := services.NewHTTPRequestService(5 * time.Second)
	auth := services.NewAuthClient(authServer.URL, httpService)
	chat := services.NewChatClient(chatServer.URL, httpService)
	require.NoError(t, auth.Initialize())
	require.NoError(t, chat.Initialize())
	require.NoError(t, chat.Health(context.Background()))

	store := storage.NewMemoryStore()
	ctrl, err := New(Deps{Store: store, Auth: auth, Chat: chat}, Options{RegisterRedirectDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	defer ctrl.Close()
	ctx := context.Background()

	// Unknown account.
	snap, err := ctrl.SubmitLogin(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, mockserver.DetailBadCredentials, snap.Form.Error)

	// Register, wait for the redirect, then log in.
	_, err = ctrl.SwitchView(chattypes.ViewRegister)
	require.NoError(t, err)
	snap, err = ctrl.SubmitRegister(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, mockserver.DetailRegistered, snap.Form.Success)
	require.Eventually(t, func() bool { return ctrl.Snapshot().View == chattypes.ViewLogin }, 2*time.Second, 5*time.Millisecond)

	snap, err = ctrl.SubmitLogin(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	require.Equal(t, chattypes.StateChat, snap.State)
	sid := snap.SessionID

	snap, err = ctrl.SendMessage(ctx, "what is on the menu?")
	require.NoError(t, err)
	last, _ := snap.LastMessage()
	assert.Contains(t, last.Text, "Phở bò")

	// A restart with the same store resumes the conversation.
	restarted, err := New(Deps{Store: store, Auth: auth, Chat: chat}, Options{})
	require.NoError(t, err)
	defer restarted.Close()
	assert.Equal(t, chattypes.StateChat, restarted.State())
	assert.Equal(t, sid, restarted.Snapshot().SessionID)

	// Server-side expiry forces a logout.
	token, ok := store.Get(storage.KeyAccessToken)
	require.True(t, ok)
	backend.Tokens().Revoke(token)

	snap, err = restarted.SendMessage(ctx, "one more bánh mì please")
	require.NoError(t, err)
	assert.Equal(t, chattypes.StateUnauthenticated, snap.State)
	last, _ = snap.LastMessage()
	assert.Equal(t, SessionExpiredNotice, last.Text)
	_, ok = store.Get(storage.KeySessionID)
	assert.False(t, ok)
}
