package google

import (
	"context"
	"testing"
	"time"

	"github.com/klokku/slotfinder/internal/test_utils"
	"github.com/klokku/slotfinder/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testAuthRepository(t *testing.T, repo AuthRepository, userId int) {
	ctx := context.Background()

	token, err := repo.GetToken(ctx, userId)
	require.NoError(t, err)
	assert.Nil(t, token)

	require.NoError(t, repo.StoreNonce(ctx, userId, "nonce-1"))
	assert.ErrorIs(t, repo.StoreToken(ctx, "unknown", &oauth2.Token{AccessToken: "x"}), ErrUnknownNonce)

	expiry := time.Unix(1767225600, 0)
	require.NoError(t, repo.StoreToken(ctx, "nonce-1", &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry}))

	token, err = repo.GetToken(ctx, userId)
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.True(t, expiry.Equal(token.Expiry))

	// a new login drops the previous token
	require.NoError(t, repo.StoreNonce(ctx, userId, "nonce-2"))
	token, err = repo.GetToken(ctx, userId)
	require.NoError(t, err)
	assert.Nil(t, token)

	require.NoError(t, repo.StoreToken(ctx, "nonce-2", &oauth2.Token{AccessToken: "access-2"}))
	require.NoError(t, repo.DeleteToken(ctx, userId))
	token, err = repo.GetToken(ctx, userId)
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestAuthRepositoryStub(t *testing.T) {
	testAuthRepository(t, NewAuthRepositoryStub(), 1)
}

func TestAuthRepositoryImpl(t *testing.T) {
	db := test_utils.TestWithDB(t)
	userId, err := user.NewUserRepo(db).CreateUser(context.Background(), user.User{Uid: "u1", Username: "alice", Timezone: "UTC"})
	require.NoError(t, err)

	testAuthRepository(t, NewAuthRepository(db), userId)
}
