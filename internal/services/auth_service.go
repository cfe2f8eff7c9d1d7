package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/sleepstop/sleepstop-backend/internal/dto"
	"github.com/sleepstop/sleepstop-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken        = errors.New("username already exists")
	ErrEmailTaken           = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUserNotFound         = errors.New("user not found")
	ErrPasswordRequired     = errors.New("password is required")
	ErrFieldsRequired       = errors.New("username and email are required")
	ErrPasswordTooShort     = errors.New("password must be at least 8 characters")
	ErrIDTokenRequired      = errors.New("id token is required")
	ErrIdentityVerification = errors.New("failed to verify Google identity token")
)

// IdentityVerifier validates an external identity credential and returns its
// verified claims. Satisfied by GoogleVerifier in production.
type IdentityVerifier interface {
	Verify(idToken string) (*GoogleClaims, error)
}

// AuthService unifies password accounts and Google-federated accounts into
// one canonical user record. Federated resolution relies on the store's
// uniqueness constraints plus read-after-conflict recovery, so concurrent
// sign-ins for the same subject never produce two accounts.
type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
	google IdentityVerifier
}

func NewAuthService(db *gorm.DB, tokens *TokenService, google IdentityVerifier) *AuthService {
	return &AuthService{db: db, tokens: tokens, google: google}
}

func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, ErrFieldsRequired
	}
	if len(req.Password) < 8 {
		return nil, ErrPasswordTooShort
	}

	var existing models.User
	if err := s.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		return nil, ErrUsernameTaken
	}
	if err := s.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	// Explicit pre-persist transform: the hash is computed here, never in a
	// persistence hook. Plaintext is never stored.
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hashStr := string(hash)

	user := models.User{
		ID:           uuid.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: &hashStr,
	}

	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race with a concurrent registration; report which
			// value collided.
			if err := s.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.buildAuthResponse(&user)
}

func (s *AuthService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// Federated-only accounts have no hash; password login is not applicable.
	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.buildAuthResponse(&user)
}

// GoogleSignIn verifies the ID token and resolves it to a canonical account:
// by subject first, then by verified email (linking the subject to an
// unlinked account), then by creating a new federated account. Uniqueness
// violations from concurrent sign-ins are recovered by re-reading the winner.
func (s *AuthService) GoogleSignIn(req *dto.GoogleSignInRequest) (*dto.AuthResponse, error) {
	if req.IDToken == "" {
		return nil, ErrIDTokenRequired
	}

	claims, err := s.google.Verify(req.IDToken)
	if err != nil {
		slog.Error("google token verification failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrIdentityVerification, err)
	}

	user, err := s.resolveFederated(claims)
	if err != nil {
		return nil, err
	}

	return s.buildAuthResponse(user)
}

func (s *AuthService) resolveFederated(claims *GoogleClaims) (*models.User, error) {
	subject := claims.Sub
	email := claims.Email
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrIdentityVerification)
	}

	// 1. Already known subject.
	var user models.User
	err := s.db.Where("google_subject = ?", subject).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// 2. Existing account with the verified email: link the subject to it.
	err = s.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.GoogleSubject != nil {
			// Email belongs to an account linked to a different subject.
			return nil, ErrEmailTaken
		}
		result := s.db.Model(&models.User{}).
			Where("id = ? AND google_subject IS NULL", user.ID).
			Update("google_subject", subject)
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to link account: %w", result.Error)
		}
		if result.Error == nil && result.RowsAffected > 0 {
			user.GoogleSubject = &subject
			return &user, nil
		}
		// Lost the linking race: another request claimed the subject or the
		// row. The winner is whoever holds the subject now.
		return s.readLinkWinner(subject)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// 3. New federated account, no password.
	firstName, lastName := splitName(claims)
	user = models.User{
		ID:            uuid.New(),
		Username:      deriveUsername(claims),
		Email:         email,
		GoogleSubject: &subject,
		FirstName:     firstName,
		LastName:      lastName,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Either a concurrent sign-in created the account (return the
			// winner) or the derived username collided (retry once with a
			// disambiguated one).
			if winner, werr := s.readLinkWinner(subject); werr == nil {
				return winner, nil
			}
			user.ID = uuid.New()
			user.Username = user.Username + "." + shortSuffix(subject)
			if err := s.db.Create(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return s.readLinkWinner(subject)
				}
				return nil, fmt.Errorf("failed to create user: %w", err)
			}
			return &user, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// readLinkWinner fetches the account that owns the federated subject after a
// lost race. Finding nothing means the conflict was not about the subject.
func (s *AuthService) readLinkWinner(subject string) (*models.User, error) {
	var winner models.User
	if err := s.db.Where("google_subject = ?", subject).First(&winner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &winner, nil
}

// DeleteAccount removes the user and all owned alarms in one transaction.
// Password accounts must confirm with their password; federated-only
// accounts have none to confirm with.
func (s *AuthService) DeleteAccount(userID uuid.UUID, password string) error {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	if user.HasPassword() {
		if password == "" {
			return ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Alarm{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

func (s *AuthService) buildAuthResponse(user *models.User) (*dto.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &dto.AuthResponse{
		Token: token,
		User: dto.UserResponse{
			ID:           user.ID,
			Username:     user.Username,
			Email:        user.Email,
			IsGoogleUser: user.IsFederated(),
		},
	}, nil
}

func deriveUsername(claims *GoogleClaims) string {
	name := strings.TrimSpace(claims.Name)
	if name != "" {
		return strings.ToLower(strings.Join(strings.Fields(name), "."))
	}
	if at := strings.Index(claims.Email, "@"); at > 0 {
		return strings.ToLower(claims.Email[:at])
	}
	return "user." + shortSuffix(claims.Sub)
}

func splitName(claims *GoogleClaims) (string, string) {
	if claims.GivenName != "" || claims.FamilyName != "" {
		return claims.GivenName, claims.FamilyName
	}
	fields := strings.Fields(claims.Name)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

func shortSuffix(subject string) string {
	if len(subject) > 6 {
		return subject[len(subject)-6:]
	}
	return subject
}
