package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mathdrill/internal/database"
	"mathdrill/internal/exercise"
	"mathdrill/internal/models"
	"mathdrill/internal/repository"
)

type testEnv struct {
	db           *database.DB
	userRepo     *repository.UserRepository
	practiceRepo *repository.PracticeRepository
	exerciseRepo *repository.ExerciseRepository
	progressRepo *repository.ProgressRepository
	activityRepo *repository.ActivityRepository
	clock        time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(""))

	return &testEnv{
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		practiceRepo: repository.NewPracticeRepository(db),
		exerciseRepo: repository.NewExerciseRepository(db),
		progressRepo: repository.NewProgressRepository(db),
		activityRepo: repository.NewActivityRepository(db),
		clock:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// advance moves the fake clock forward
func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func (e *testEnv) practiceService() *PracticeService {
	svc := NewPracticeService(e.db, e.practiceRepo, e.exerciseRepo, e.progressRepo, e.activityRepo, exercise.NewSeededGenerator(42))
	svc.now = func() time.Time { return e.clock }
	return svc
}

// newUser creates a user with an empty progress row
func (e *testEnv) newUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.userRepo.CreateUser(username, username+"@example.com", "Test", "User", "hash")
	require.NoError(t, err)
	_, err = e.progressRepo.CreateProgress(user.ID)
	require.NoError(t, err)
	return user
}

// difficultyID returns the id of the difficulty with the given ordinal
func (e *testEnv) difficultyID(t *testing.T, value int) int64 {
	t.Helper()
	levels, err := e.exerciseRepo.ListDifficulties()
	require.NoError(t, err)
	for _, level := range levels {
		if level.Value == value {
			return level.ID
		}
	}
	t.Fatalf("no difficulty with value %d", value)
	return 0
}
