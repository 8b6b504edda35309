package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"mathdrill/internal/credentials"
	"mathdrill/internal/database"
	"mathdrill/internal/metrics"
	"mathdrill/internal/models"
	"mathdrill/internal/repository"
	"mathdrill/internal/security"
	"mathdrill/internal/validation"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// RegisterInput is a validated registration request
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// AuthService handles accounts, login sessions and account provisioning
type AuthService struct {
	db              *database.DB
	userRepo        *repository.UserRepository
	progressRepo    *repository.ProgressRepository
	activityRepo    *repository.ActivityRepository
	emailService    *EmailService
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service. emailService may be nil.
func NewAuthService(
	db *database.DB,
	userRepo *repository.UserRepository,
	progressRepo *repository.ProgressRepository,
	activityRepo *repository.ActivityRepository,
	emailService *EmailService,
	sessionDuration time.Duration,
) *AuthService {
	return &AuthService{
		db:              db,
		userRepo:        userRepo,
		progressRepo:    progressRepo,
		activityRepo:    activityRepo,
		emailService:    emailService,
		sessionDuration: sessionDuration,
	}
}

// Register creates a password account and provisions it
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName("first_name", in.FirstName); err != nil {
		return nil, err
	}
	if err := validation.ValidateName("last_name", in.LastName); err != nil {
		return nil, err
	}

	if err := s.checkAvailable(in.Username, in.Email); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.provision(ctx, in.Username, in.Email, in.FirstName, in.LastName, passwordHash, "", "")
	if err != nil {
		return nil, err
	}

	if err := s.emailService.SendWelcomeEmail(ctx, user.Email, user.DisplayName()); err != nil {
		log.Printf("Warning: failed to send welcome email to user %d: %v", user.ID, err)
	}
	return user, nil
}

func (s *AuthService) checkAvailable(username, email string) error {
	existing, err := s.userRepo.GetUserByUsername(username)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return ErrUsernameTaken
	}

	existing, err = s.userRepo.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return ErrEmailTaken
	}
	return nil
}

// provision creates the user with its profile, progress and registration
// entry in one transaction
func (s *AuthService) provision(ctx context.Context, username, email, firstName, lastName, passwordHash, provider, subject string) (*models.User, error) {
	var user *models.User
	now := time.Now().UTC()

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		userRepo := s.userRepo.WithTx(tx)

		var err error
		user, err = userRepo.CreateUser(username, email, firstName, lastName, passwordHash)
		if err != nil {
			return err
		}
		if provider != "" {
			if err := userRepo.LinkOAuthProvider(user.ID, provider, subject); err != nil {
				return err
			}
			user.OAuthProvider = provider
			user.OAuthSubject = subject
		}
		if _, err := userRepo.CreateProfile(user.ID); err != nil {
			return err
		}
		if _, err := s.progressRepo.WithTx(tx).CreateProgress(user.ID); err != nil {
			return err
		}

		description := "Registered with username " + username
		if provider != "" {
			description = fmt.Sprintf("Registered with %s as %s", provider, username)
		}
		_, err = s.activityRepo.WithTx(tx).Log(user.ID, models.ActivityRegistration, description, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}

	origin := provider
	if origin == "" {
		origin = "password"
	}
	metrics.Registrations.WithLabelValues(origin).Inc()
	log.Printf("Provisioned user %d (%s)", user.ID, username)
	return user, nil
}

// Login authenticates by username and creates a session
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Session, *models.User, error) {
	user, err := s.userRepo.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.startSession(ctx, user, "Logged in")
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// startSession creates a login session and records the login
func (s *AuthService) startSession(ctx context.Context, user *models.User, description string) (*models.Session, error) {
	now := time.Now().UTC()
	var session *models.Session

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		var err error
		session, err = s.userRepo.WithTx(tx).CreateSession(security.GenerateSessionID(), user.ID, now.Add(s.sessionDuration))
		if err != nil {
			return err
		}
		_, err = s.activityRepo.WithTx(tx).Log(user.ID, models.ActivityLogin, description, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(sessionID string) (*models.User, error) {
	session, err := s.userRepo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		_ = s.userRepo.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	user, err := s.userRepo.GetUserByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	return user, nil
}

// Logout records the logout and invalidates the session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	session, err := s.userRepo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	if session == nil {
		return nil
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if _, err := s.activityRepo.WithTx(tx).Log(session.UserID, models.ActivityLogout, "Logged out", time.Now().UTC()); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).DeleteSession(sessionID)
	})
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// CleanupExpiredSessions removes expired sessions from the database
func (s *AuthService) CleanupExpiredSessions() (int64, error) {
	n, err := s.userRepo.DeleteExpiredSessions()
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	return n, nil
}

// OAuthLogin signs in through an OAuth provider. Unknown identities are
// linked to an existing account with the same email, or provisioned as a new
// account with a generated username.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email, firstName, lastName string) (*models.Session, *models.User, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetUserByOAuth(provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existing, err := s.userRepo.GetUserByEmail(email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, nil, ErrEmailTaken
			}
			if err := s.userRepo.LinkOAuthProvider(existing.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			user = existing
		} else {
			username, err := s.availableUsername(email)
			if err != nil {
				return nil, nil, err
			}
			randomPasswordHash, err := security.HashPassword(security.GenerateSessionID())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to generate oauth password hash: %w", err)
			}
			user, err = s.provision(ctx, username, email, firstName, lastName, randomPasswordHash, provider, subject)
			if err != nil {
				return nil, nil, err
			}
			if err := s.emailService.SendWelcomeEmail(ctx, user.Email, user.DisplayName()); err != nil {
				log.Printf("Warning: failed to send welcome email to user %d: %v", user.ID, err)
			}
		}
	}

	session, err := s.startSession(ctx, user, "Logged in with "+provider)
	if err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// availableUsername prefers the email's local part and falls back to
// generated names
func (s *AuthService) availableUsername(email string) (string, error) {
	if candidate := credentials.UsernameFromEmail(email); candidate != "" {
		existing, err := s.userRepo.GetUserByUsername(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
	}

	for i := 0; i < 5; i++ {
		candidate, err := credentials.GenerateUsername()
		if err != nil {
			return "", fmt.Errorf("failed to generate username: %w", err)
		}
		existing, err := s.userRepo.GetUserByUsername(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if existing == nil {
			return candidate, nil
		}
	}
	return "", ErrUsernameTaken
}
