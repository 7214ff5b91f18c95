package users

import (
	"context"
	"testing"

	"github.com/krishkalaria12/snap-detect/database/dbtest"
	"github.com/krishkalaria12/snap-detect/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(dbtest.Open(t))
}

func TestCreate_DuplicateEmailRejected(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, Input{Username: "taro", Email: "flaskbook@example.com", Password: "password"})
	require.NoError(t, err)

	_, err = s.Create(ctx, Input{Username: "jiro", Email: "flaskbook@example.com", Password: "password"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	users, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreate_StoresHashOnly(t *testing.T) {
	s := newService(t)

	u, err := s.Create(context.Background(), Input{Username: "taro", Email: "t@example.com", Password: "password"})
	require.NoError(t, err)

	assert.NotEqual(t, "password", u.PasswordHash)
	assert.True(t, u.VerifyPassword("password"))
}

func TestUpdate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	a, err := s.Create(ctx, Input{Username: "a", Email: "a@example.com", Password: "pw-a"})
	require.NoError(t, err)
	_, err = s.Create(ctx, Input{Username: "b", Email: "b@example.com", Password: "pw-b"})
	require.NoError(t, err)

	_, err = s.Update(ctx, a.ID, Input{Username: "a", Email: "b@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	// keeping the own email is not a duplicate, empty password keeps the hash
	u, err := s.Update(ctx, a.ID, Input{Username: "alice", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.True(t, u.VerifyPassword("pw-a"))

	u, err = s.Update(ctx, a.ID, Input{Username: "alice", Email: "a@example.com", Password: "new"})
	require.NoError(t, err)
	assert.True(t, u.VerifyPassword("new"))

	_, err = s.Update(ctx, 999, Input{Username: "x", Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDelete_CascadesImagesAndTags(t *testing.T) {
	db := dbtest.Open(t)
	s := NewService(db)
	ctx := context.Background()

	owner, err := s.Create(ctx, Input{Username: "owner", Email: "o@example.com", Password: "pw"})
	require.NoError(t, err)
	other, err := s.Create(ctx, Input{Username: "other", Email: "x@example.com", Password: "pw"})
	require.NoError(t, err)

	img := models.UserImage{UserID: owner.ID, ImagePath: "a.jpg", Tags: []models.UserImageTag{{TagName: "dog"}}}
	require.NoError(t, db.Create(&img).Error)
	keep := models.UserImage{UserID: other.ID, ImagePath: "b.jpg", Tags: []models.UserImageTag{{TagName: "cat"}}}
	require.NoError(t, db.Create(&keep).Error)

	paths, err := s.Delete(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg"}, paths)

	var count int64
	db.Model(&models.UserImage{}).Count(&count)
	assert.Equal(t, int64(1), count)
	db.Model(&models.UserImageTag{}).Count(&count)
	assert.Equal(t, int64(1), count)

	_, err = s.Get(ctx, owner.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.Delete(ctx, owner.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthenticate(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	created, err := s.Create(ctx, Input{Username: "taro", Email: "taro@example.com", Password: "password"})
	require.NoError(t, err)

	u, err := s.Authenticate(ctx, "taro@example.com", "password")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, created.ID, u.ID)

	u, err = s.Authenticate(ctx, "taro", "password")
	require.NoError(t, err)
	require.NotNil(t, u)

	u, err = s.Authenticate(ctx, "taro@example.com", "wrong")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = s.Authenticate(ctx, "nobody@example.com", "password")
	require.NoError(t, err)
	assert.Nil(t, u)
}
