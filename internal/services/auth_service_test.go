package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sleepstop/sleepstop-backend/internal/dto"
	"github.com/sleepstop/sleepstop-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newAuthService(db *gorm.DB, verifier IdentityVerifier) *AuthService {
	tokens := NewTokenService("test-secret", 24*time.Hour)
	return NewAuthService(db, tokens, verifier)
}

func googleClaims(sub, email, name string) *GoogleClaims {
	return &GoogleClaims{
		Iss:   "https://accounts.google.com",
		Sub:   sub,
		Email: email,
		Name:  name,
	}
}

func TestRegister_HashesPasswordAndIssuesToken(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{})

	resp, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "jane", resp.User.Username)
	assert.False(t, resp.User.IsGoogleUser)

	var user models.User
	require.NoError(t, db.First(&user, "username = ?", "jane").Error)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "hunter2hunter2", *user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte("hunter2hunter2")))

	tokens := NewTokenService("test-secret", 24*time.Hour)
	userID, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{})

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, err = svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "other@example.com", Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(&dto.RegisterRequest{
		Username: "janet", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_RejectsShortPassword(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{})

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = svc.Register(&dto.RegisterRequest{
		Username: " ", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, ErrFieldsRequired)
}

func TestLogin(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{})

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		resp, err := svc.Login(&dto.LoginRequest{Username: "jane", Password: "hunter2hunter2"})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := svc.Login(&dto.LoginRequest{Username: "nobody", Password: "hunter2hunter2"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(&dto.LoginRequest{Username: "jane", Password: "wrong-password"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLogin_FederatedOnlyAccountHasNoPassword(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{claims: googleClaims("sub-1", "jane@example.com", "Jane Doe")})

	resp, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)

	_, err = svc.Login(&dto.LoginRequest{Username: resp.User.Username, Password: "anything-at-all"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGoogleSignIn_CreatesFederatedAccount(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{claims: googleClaims("sub-1", "jane@example.com", "Jane Doe")})

	resp, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)
	assert.True(t, resp.User.IsGoogleUser)
	assert.Equal(t, "jane.doe", resp.User.Username)
	assert.Equal(t, "jane@example.com", resp.User.Email)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", resp.User.ID).Error)
	require.NotNil(t, user.GoogleSubject)
	assert.Equal(t, "sub-1", *user.GoogleSubject)
	assert.Nil(t, user.PasswordHash)
	assert.Equal(t, "Jane", user.FirstName)
	assert.Equal(t, "Doe", user.LastName)
}

func TestGoogleSignIn_Idempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{claims: googleClaims("sub-1", "jane@example.com", "Jane Doe")})

	first, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)
	second, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGoogleSignIn_LinksPasswordAccountByEmail(t *testing.T) {
	db := newTestDB(t)
	verifier := &fakeVerifier{claims: googleClaims("sub-1", "jane@example.com", "Jane Doe")}
	svc := newAuthService(db, verifier)

	local, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	linked, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, linked.User.ID)

	// one account, both credential types
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", local.User.ID).Error)
	require.NotNil(t, user.GoogleSubject)
	assert.Equal(t, "sub-1", *user.GoogleSubject)
	assert.True(t, user.HasPassword())

	// a later sign-in with the same subject reuses the linked account
	again, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, again.User.ID)

	// and the password still works
	_, err = svc.Login(&dto.LoginRequest{Username: "jane", Password: "hunter2hunter2"})
	assert.NoError(t, err)
}

func TestGoogleSignIn_LostLinkingRaceReturnsWinner(t *testing.T) {
	db := newTestDB(t)
	verifier := &fakeVerifier{claims: googleClaims("sub-1", "jane@example.com", "Jane Doe")}
	svc := newAuthService(db, verifier)

	local, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	// Claim the subject out-of-band right before the conditional link runs,
	// as a concurrent sign-in on another instance would. The link then
	// matches zero rows and the resolver must re-read and return the winner.
	linked := false
	err = db.Callback().Update().Before("gorm:update").Register("concurrent_link", func(tx *gorm.DB) {
		if linked {
			return
		}
		linked = true
		// Use the transaction's own connection: the pool has a single
		// connection and the in-flight update's transaction holds it, so a
		// new session would deadlock waiting for it.
		_, execErr := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE users SET google_subject = ? WHERE email = ?", "sub-1", "jane@example.com")
		require.NoError(t, execErr)
	})
	require.NoError(t, err)

	resp, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)
	assert.Equal(t, local.User.ID, resp.User.ID)
	assert.True(t, resp.User.IsGoogleUser)

	// still exactly one account, linked once
	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("google_subject = ?", "sub-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGoogleSignIn_EmailOwnedByDifferentSubject(t *testing.T) {
	db := newTestDB(t)
	verifier := &fakeVerifier{claims: googleClaims("sub-1", "jane@example.com", "Jane Doe")}
	svc := newAuthService(db, verifier)

	_, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)

	verifier.claims = googleClaims("sub-2", "jane@example.com", "Impostor")
	_, err = svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGoogleSignIn_UsernameCollisionGetsSuffix(t *testing.T) {
	db := newTestDB(t)
	verifier := &fakeVerifier{claims: googleClaims("subject-abc123", "jane.g@example.com", "Jane Doe")}
	svc := newAuthService(db, verifier)

	_, err := svc.Register(&dto.RegisterRequest{
		Username: "jane.doe", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	resp, err := svc.GoogleSignIn(&dto.GoogleSignInRequest{IDToken: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe.abc123", resp.User.Username)
}

func TestDeleteAccount(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(db, &fakeVerifier{})
	alarms := NewAlarmService(db)

	resp, err := svc.Register(&dto.RegisterRequest{
		Username: "jane", Email: "jane@example.com", Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, err = alarms.Create(resp.User.ID, &dto.CreateAlarmRequest{
		Label: "Work", Latitude: 40, Longitude: -75,
	})
	require.NoError(t, err)

	t.Run("requires password", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteAccount(resp.User.ID, ""), ErrPasswordRequired)
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeleteAccount(resp.User.ID, "wrong-password"), ErrInvalidCredentials)
	})

	t.Run("cascades to alarms", func(t *testing.T) {
		require.NoError(t, svc.DeleteAccount(resp.User.ID, "hunter2hunter2"))

		var users, owned int64
		require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
		require.NoError(t, db.Model(&models.Alarm{}).Where("user_id = ?", resp.User.ID).Count(&owned).Error)
		assert.EqualValues(t, 0, users)
		assert.EqualValues(t, 0, owned)
	})
}
