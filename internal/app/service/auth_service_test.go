package service_test

import (
	"context"
	"testing"
	"time"

	"codebench/internal/app/service"
	"codebench/internal/common"
	"codebench/internal/common/security"
	"codebench/internal/domain/model"
	"codebench/internal/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	byID map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.byID {
		if u.Username == user.Username || u.Email == user.Email {
			return common.ErrConflict
		}
	}
	stored := *user
	f.byID[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func newAuthService(t *testing.T) (*service.AuthService, *miniredis.Miniredis) {
	t.Helper()
	config.AppConfig = &config.Config{
		JWTKey: []byte("test-secret"),
		JWTExp: time.Hour,
	}
	security.InitJWT()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return service.NewAuthService(newFakeUserRepo(), rdb), mr
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, service.SignupRequest{
		Username: "alice", Email: "alice@example.com", Password: "hunter22",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, model.RoleUser, resp.User.Role)
	assert.Empty(t, resp.User.HashedPassword)

	// Login by email
	resp, err = svc.Login(ctx, service.LoginRequest{LoginField: "alice@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	// Login by username
	resp, err = svc.Login(ctx, service.LoginRequest{LoginField: "alice", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, service.SignupRequest{
		Username: "bob", Email: "bob@example.com", Password: "correct",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, service.LoginRequest{LoginField: "bob", Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = svc.Login(ctx, service.LoginRequest{LoginField: "nobody", Password: "whatever"})
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestSignupDuplicate(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	req := service.SignupRequest{Username: "carol", Email: "carol@example.com", Password: "pw123456"}
	_, err := svc.Signup(ctx, req)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestLogoutBlocklistsToken(t *testing.T) {
	svc, mr := newAuthService(t)
	ctx := context.Background()

	token := "some.jwt.token"
	require.NoError(t, svc.Logout(ctx, token, time.Now().Add(time.Hour)))

	blocked, err := svc.IsTokenBlocked(ctx, token)
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = svc.IsTokenBlocked(ctx, "another.token")
	require.NoError(t, err)
	assert.False(t, blocked)

	// The blocklist entry expires with the token itself.
	mr.FastForward(2 * time.Hour)
	blocked, err = svc.IsTokenBlocked(ctx, token)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLogoutExpiredTokenIsNoop(t *testing.T) {
	svc, _ := newAuthService(t)

	require.NoError(t, svc.Logout(context.Background(), "stale.token", time.Now().Add(-time.Minute)))
	blocked, err := svc.IsTokenBlocked(context.Background(), "stale.token")
	require.NoError(t, err)
	assert.False(t, blocked)
}
