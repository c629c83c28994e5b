package businessflow

import (
	"context"
	"sync"
	"testing"

	"github.com/florelabs/leaftag/app/services"
	"github.com/florelabs/leaftag/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthFlow(claims *services.TokenClaims, tokenErr error) (AuthFlow, *fakeUserRepo) {
	repo := newFakeUserRepo()
	flow := NewAuthFlow(repo, &stubTokenService{claims: claims, err: tokenErr}, nil)
	return flow, repo
}

func TestAuthFlowProvisionsFirstTimeUser(t *testing.T) {
	flow, repo := newTestAuthFlow(&services.TokenClaims{
		Email:   "alice@example.com",
		Subject: "alice",
	}, nil)

	user, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, utils.IsTrue(user.IsActive))
	assert.NotZero(t, user.ID)

	stored, err := repo.ByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, user.ID, stored.ID)
}

func TestAuthFlowResolvesExistingUser(t *testing.T) {
	flow, _ := newTestAuthFlow(&services.TokenClaims{
		Email:   "alice@example.com",
		Subject: "alice",
	}, nil)

	first, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)

	second, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UUID, second.UUID)
}

func TestAuthFlowUsernameFallsBackToEmail(t *testing.T) {
	flow, _ := newTestAuthFlow(&services.TokenClaims{
		Email: "alice@example.com",
	}, nil)

	user, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Username)
}

func TestAuthFlowBackfillsUsernameFromSubject(t *testing.T) {
	flow, _ := newTestAuthFlow(&services.TokenClaims{
		Email: "alice@example.com",
	}, nil)

	// Provisioned before the identity service exposed subjects.
	first, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", first.Username)

	// Same repository, new claims carrying a subject.
	impl := flow.(*AuthFlowImpl)
	impl.tokenService = &stubTokenService{claims: &services.TokenClaims{
		Email:   "alice@example.com",
		Subject: "alice",
	}}

	second, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice", second.Username)
}

func TestAuthFlowTokenErrorPassesThrough(t *testing.T) {
	flow, _ := newTestAuthFlow(nil, services.ErrTokenExpired)

	_, err := flow.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, services.ErrTokenExpired)
}

func TestAuthFlowRejectsInactiveAccount(t *testing.T) {
	flow, repo := newTestAuthFlow(&services.TokenClaims{
		Email:   "alice@example.com",
		Subject: "alice",
	}, nil)

	user, err := flow.Authenticate(context.Background(), "token")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.users[user.ID].IsActive = utils.ToPtr(false)
	repo.mu.Unlock()

	_, err = flow.Authenticate(context.Background(), "token")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestAuthFlowConcurrentFirstTimeAuthSingleRow(t *testing.T) {
	flow, repo := newTestAuthFlow(&services.TokenClaims{
		Email:   "alice@example.com",
		Subject: "alice",
	}, nil)

	const callers = 16
	var wg sync.WaitGroup
	ids := make([]uint, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := flow.Authenticate(context.Background(), "token")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = user.ID
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	email := "alice@example.com"
	count, err := repo.Count(context.Background(), userFilterByEmail(email))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
