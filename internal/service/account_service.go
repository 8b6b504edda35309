package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mathdrill/internal/database"
	"mathdrill/internal/models"
	"mathdrill/internal/repository"
	"mathdrill/internal/validation"
)

// DashboardRecentActivities is how many activities the dashboard lists
const DashboardRecentActivities = 5

// Dashboard is the data behind the learner's landing page
type Dashboard struct {
	User           *models.User
	Profile        *models.Profile
	Progress       *models.Progress
	RecentActivity []models.ActivityLog
}

// ProfileUpdate is a validated profile edit
type ProfileUpdate struct {
	Email      string
	FirstName  string
	LastName   string
	GradeLevel int
	BirthDate  *time.Time
}

// AccountService serves the profile, progress and activity pages
type AccountService struct {
	db           *database.DB
	userRepo     *repository.UserRepository
	progressRepo *repository.ProgressRepository
	activityRepo *repository.ActivityRepository
}

// NewAccountService creates a new account service
func NewAccountService(db *database.DB, userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository, activityRepo *repository.ActivityRepository) *AccountService {
	return &AccountService{
		db:           db,
		userRepo:     userRepo,
		progressRepo: progressRepo,
		activityRepo: activityRepo,
	}
}

// Dashboard loads profile, progress and the most recent activities
func (s *AccountService) Dashboard(user *models.User) (*Dashboard, error) {
	profile, err := s.Profile(user.ID)
	if err != nil {
		return nil, err
	}
	progress, err := s.Progress(user.ID)
	if err != nil {
		return nil, err
	}
	recent, err := s.activityRepo.ListRecent(user.ID, DashboardRecentActivities)
	if err != nil {
		return nil, err
	}
	return &Dashboard{User: user, Profile: profile, Progress: progress, RecentActivity: recent}, nil
}

// Profile returns the user's profile. Accounts created before profiles
// existed get the default profile.
func (s *AccountService) Profile(userID int64) (*models.Profile, error) {
	profile, err := s.userRepo.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return &models.Profile{UserID: userID, GradeLevel: models.MinGradeLevel}, nil
	}
	return profile, nil
}

// Progress returns the user's lifetime progress, empty when nothing was
// recorded yet
func (s *AccountService) Progress(userID int64) (*models.Progress, error) {
	progress, err := s.progressRepo.GetProgress(userID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return models.NewProgress(userID), nil
	}
	return progress, nil
}

// Activity returns the full activity log, newest first
func (s *AccountService) Activity(userID int64) ([]models.ActivityLog, error) {
	return s.activityRepo.ListRecent(userID, 0)
}

// UpdateProfile saves contact details and profile fields and records the
// change in one transaction
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) error {
	update.Email = strings.TrimSpace(update.Email)
	update.FirstName = strings.TrimSpace(update.FirstName)
	update.LastName = strings.TrimSpace(update.LastName)

	if err := validation.ValidateEmail(update.Email); err != nil {
		return err
	}
	if update.GradeLevel < models.MinGradeLevel || update.GradeLevel > models.MaxGradeLevel {
		return validation.ValidationError{
			Field:   "grade_level",
			Message: fmt.Sprintf("grade level must be between %d and %d", models.MinGradeLevel, models.MaxGradeLevel),
		}
	}
	if update.BirthDate != nil && update.BirthDate.After(time.Now()) {
		return validation.ValidationError{Field: "birth_date", Message: "birth date cannot be in the future"}
	}

	existing, err := s.userRepo.GetUserByEmail(update.Email)
	if err != nil {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil && existing.ID != userID {
		return ErrEmailTaken
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		userRepo := s.userRepo.WithTx(tx)
		if err := userRepo.UpdateUser(userID, update.Email, update.FirstName, update.LastName); err != nil {
			return err
		}

		profile, err := userRepo.GetProfile(userID)
		if err != nil {
			return err
		}
		if profile == nil {
			if profile, err = userRepo.CreateProfile(userID); err != nil {
				return err
			}
		}
		profile.GradeLevel = update.GradeLevel
		profile.BirthDate = update.BirthDate
		if err := userRepo.UpdateProfile(profile); err != nil {
			return err
		}

		_, err = s.activityRepo.WithTx(tx).Log(userID, models.ActivityProfileUpdate, "Updated profile", time.Now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
