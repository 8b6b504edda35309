package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"mathdrill/internal/database"
	"mathdrill/internal/exercise"
	"mathdrill/internal/metrics"
	"mathdrill/internal/models"
	"mathdrill/internal/repository"
)

var (
	ErrUnknownDifficulty       = errors.New("unknown difficulty level")
	ErrUnknownCategory         = errors.New("unknown category")
	ErrInvalidCount            = errors.New("exercise count must not be negative")
	ErrNoActivePractice        = errors.New("no practice session in progress")
	ErrNoQuestionShown         = errors.New("no question is waiting for an answer")
	ErrSessionClosed           = errors.New("practice session already completed")
	ErrAllAnswersCounted       = errors.New("practice session already counts every exercise as correct")
	ErrExerciseSessionNotFound = errors.New("practice session not found")
)

// StartRequest carries a validated practice configuration
type StartRequest struct {
	CategoryID   int64 // 0 selects the default category
	DifficultyID int64
	Operation    models.Operation
	Count        int
}

// Step is what the solve page shows next: either an exercise or the
// completed session
type Step struct {
	Exercise  *models.Exercise
	Session   *models.ExerciseSession
	Completed bool
}

// Feedback is the result of one submitted answer
type Feedback struct {
	Correct       bool
	CorrectAnswer decimal.Decimal
	Message       string
}

// SessionResults summarizes a session for the results page
type SessionResults struct {
	Session         *models.ExerciseSession
	Total           int
	Correct         int
	Accuracy        decimal.Decimal
	Duration        time.Duration
	AverageTime     decimal.Decimal // seconds per exercise
	OperationStats  []models.OperationStats
	AttemptsDetails []models.ExerciseAttempt
}

// SessionHistory is a user's past sessions with their combined accuracy
type SessionHistory struct {
	Sessions []models.ExerciseSession
	Total    int
	Correct  int
	Accuracy decimal.Decimal
}

// PracticeService runs the practice session state machine:
// Start, then NextQuestion/SubmitAnswer until the countdown reaches zero, then
// completion. Each transition persists the returned context together with its
// database changes.
type PracticeService struct {
	db           *database.DB
	practiceRepo *repository.PracticeRepository
	exerciseRepo *repository.ExerciseRepository
	progressRepo *repository.ProgressRepository
	activityRepo *repository.ActivityRepository
	generator    *exercise.Generator
	now          func() time.Time
}

// NewPracticeService creates a new practice service
func NewPracticeService(
	db *database.DB,
	practiceRepo *repository.PracticeRepository,
	exerciseRepo *repository.ExerciseRepository,
	progressRepo *repository.ProgressRepository,
	activityRepo *repository.ActivityRepository,
	generator *exercise.Generator,
) *PracticeService {
	if generator == nil {
		generator = exercise.NewGenerator()
	}
	return &PracticeService{
		db:           db,
		practiceRepo: practiceRepo,
		exerciseRepo: exerciseRepo,
		progressRepo: progressRepo,
		activityRepo: activityRepo,
		generator:    generator,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Difficulties lists the difficulty levels for the config form
func (s *PracticeService) Difficulties() ([]models.DifficultyLevel, error) {
	return s.exerciseRepo.ListDifficulties()
}

// Categories lists the categories for the config form
func (s *PracticeService) Categories() ([]models.Category, error) {
	return s.exerciseRepo.ListCategories()
}

// CurrentContext returns the stored practice context, or nil when the user
// has no session in progress
func (s *PracticeService) CurrentContext(userID int64) (*models.PracticeContext, error) {
	return s.practiceRepo.GetContext(userID)
}

// Start opens a session and stores its context. Starting again replaces any
// previous context; the older session stays open.
func (s *PracticeService) Start(ctx context.Context, userID int64, req StartRequest) (*models.PracticeContext, *models.ExerciseSession, error) {
	if req.Count < 0 {
		return nil, nil, ErrInvalidCount
	}
	if req.Operation != models.OperationAll && !req.Operation.IsConcrete() {
		return nil, nil, exercise.ErrInvalidOperation
	}

	difficulty, err := s.exerciseRepo.GetDifficulty(req.DifficultyID)
	if err != nil {
		return nil, nil, err
	}
	if difficulty == nil {
		return nil, nil, ErrUnknownDifficulty
	}

	var category *models.Category
	if req.CategoryID == 0 {
		category, err = s.exerciseRepo.GetDefaultCategory()
	} else {
		category, err = s.exerciseRepo.GetCategory(req.CategoryID)
	}
	if err != nil {
		return nil, nil, err
	}
	if category == nil {
		return nil, nil, ErrUnknownCategory
	}

	now := s.now()
	session := &models.ExerciseSession{
		UserID:         userID,
		DifficultyID:   difficulty.ID,
		CategoryID:     category.ID,
		OperationType:  req.Operation,
		TotalExercises: req.Count,
		StartTime:      now,
	}
	pc := &models.PracticeContext{
		OperationType:     req.Operation,
		DifficultyID:      difficulty.ID,
		DifficultyValue:   difficulty.Value,
		CategoryID:        category.ID,
		Remaining:         req.Count,
		QuestionStartedAt: now,
	}

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.practiceRepo.WithTx(tx).CreateSession(session); err != nil {
			return err
		}
		pc.SessionID = session.ID

		description := fmt.Sprintf("Started %s practice (%s, %d exercises)", req.Operation.Label(), difficulty.Name, req.Count)
		if _, err := s.activityRepo.WithTx(tx).Log(userID, models.ActivitySessionStart, description, now); err != nil {
			return err
		}
		return s.practiceRepo.WithTx(tx).SaveContext(userID, pc)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start practice session: %w", err)
	}

	metrics.SessionsStarted.WithLabelValues(string(req.Operation)).Inc()
	return pc, session, nil
}

// NextQuestion produces the exercise to show. A question that was shown but
// not answered is returned again with its timer restarted. When no exercises
// remain the session is completed and the returned context is nil.
func (s *PracticeService) NextQuestion(ctx context.Context, userID int64, pc *models.PracticeContext) (*models.PracticeContext, *Step, error) {
	if pc == nil {
		return nil, nil, ErrNoActivePractice
	}
	session, err := s.ownedSession(userID, pc.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if pc.Remaining <= 0 {
		closed, err := s.complete(ctx, userID, session)
		if err != nil {
			return nil, nil, err
		}
		return nil, &Step{Session: closed, Completed: true}, nil
	}

	if pc.HasPendingQuestion() {
		pending, err := s.exerciseRepo.GetExercise(pc.CurrentExerciseID)
		if err != nil {
			return nil, nil, err
		}
		if pending != nil {
			shown := pc.Clone()
			shown.QuestionStartedAt = s.now()
			if err := s.practiceRepo.SaveContext(userID, shown); err != nil {
				return nil, nil, fmt.Errorf("failed to present exercise: %w", err)
			}
			return shown, &Step{Exercise: pending, Session: session}, nil
		}
		log.Printf("Pending exercise %d for user %d is gone, generating a new one", pc.CurrentExerciseID, userID)
	}

	problem, err := s.generator.Generate(pc.OperationType, pc.DifficultyValue)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	ex := &models.Exercise{
		Question:      problem.Question,
		Answer:        problem.Answer,
		OperationType: problem.Operation,
		DifficultyID:  pc.DifficultyID,
		CategoryID:    pc.CategoryID,
		CreatedAt:     now,
	}
	next := pc.Clone()

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.exerciseRepo.WithTx(tx).CreateExercise(ex); err != nil {
			return err
		}
		next.CurrentExerciseID = ex.ID
		next.QuestionStartedAt = now
		return s.practiceRepo.WithTx(tx).SaveContext(userID, next)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to present exercise: %w", err)
	}

	return next, &Step{Exercise: ex, Session: session}, nil
}

// SubmitAnswer grades the answer to the pending exercise and advances the
// countdown. Closed sessions reject further answers.
func (s *PracticeService) SubmitAnswer(ctx context.Context, userID int64, pc *models.PracticeContext, answer decimal.Decimal) (*models.PracticeContext, *Feedback, error) {
	if pc == nil {
		return nil, nil, ErrNoActivePractice
	}
	if !pc.HasPendingQuestion() {
		return nil, nil, ErrNoQuestionShown
	}

	session, err := s.ownedSession(userID, pc.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if !session.IsActive() {
		return nil, nil, ErrSessionClosed
	}

	ex, err := s.exerciseRepo.GetExercise(pc.CurrentExerciseID)
	if err != nil {
		return nil, nil, err
	}
	if ex == nil {
		return nil, nil, ErrNoQuestionShown
	}

	now := s.now()
	elapsed := int(now.Sub(pc.QuestionStartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}

	correct := exercise.IsCorrect(ex.Answer, answer)
	attempt := &models.ExerciseAttempt{
		SessionID:  session.ID,
		ExerciseID: ex.ID,
		UserAnswer: answer,
		IsCorrect:  correct,
		TimeTaken:  elapsed,
		CreatedAt:  now,
	}

	next := pc.Clone()
	next.Remaining--
	next.CurrentExerciseID = 0
	next.QuestionStartedAt = now

	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		repo := s.practiceRepo.WithTx(tx)
		recorded, err := repo.CreateAttempt(attempt)
		if err != nil {
			return err
		}
		if !recorded {
			return ErrSessionClosed
		}
		if correct {
			updated, err := repo.IncrementCorrect(session.ID)
			if err != nil {
				return err
			}
			if !updated {
				return ErrAllAnswersCounted
			}
		}
		return repo.SaveContext(userID, next)
	})
	if err != nil {
		if errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrAllAnswersCounted) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to record answer: %w", err)
	}

	metrics.Attempts.WithLabelValues(string(ex.OperationType), metrics.Result(correct)).Inc()

	feedback := &Feedback{Correct: correct, CorrectAnswer: ex.Answer}
	if correct {
		feedback.Message = "Correct!"
	} else {
		feedback.Message = fmt.Sprintf("Incorrect. The correct answer is %s.", ex.Answer.String())
	}
	return next, feedback, nil
}

// complete closes the session, logs it, folds it into Progress and clears the
// context, all in one transaction. A session that is already closed is left
// untouched and only the context is cleared.
func (s *PracticeService) complete(ctx context.Context, userID int64, session *models.ExerciseSession) (*models.ExerciseSession, error) {
	now := s.now()
	closedNow := false

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		practiceRepo := s.practiceRepo.WithTx(tx)

		closed, err := practiceRepo.CloseSession(session.ID, now)
		if err != nil {
			return err
		}
		if !closed {
			return practiceRepo.DeleteContext(userID)
		}
		closedNow = true

		current, err := practiceRepo.GetSession(session.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrExerciseSessionNotFound
		}
		*session = *current

		description := fmt.Sprintf("Completed practice session: %d/%d correct", session.CorrectAnswers, session.TotalExercises)
		if _, err := s.activityRepo.WithTx(tx).Log(userID, models.ActivitySessionComplete, description, now); err != nil {
			return err
		}

		attempts, err := practiceRepo.GetSessionAttempts(session.ID)
		if err != nil {
			return err
		}

		progressRepo := s.progressRepo.WithTx(tx)
		progress, err := progressRepo.GetProgress(userID)
		if err != nil {
			return err
		}
		if progress == nil {
			if progress, err = progressRepo.CreateProgress(userID); err != nil {
				return err
			}
		}
		progress.Apply(session, attempts, now)
		if err := progressRepo.UpdateProgress(progress); err != nil {
			return err
		}

		return practiceRepo.DeleteContext(userID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete practice session: %w", err)
	}

	if closedNow {
		metrics.SessionsCompleted.Inc()
		log.Printf("User %d completed session %d: %d/%d correct", userID, session.ID, session.CorrectAnswers, session.TotalExercises)
		return session, nil
	}

	closed, err := s.practiceRepo.GetSession(session.ID)
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// Results builds the summary of one of the user's sessions
func (s *PracticeService) Results(userID, sessionID int64) (*SessionResults, error) {
	session, err := s.ownedSession(userID, sessionID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.practiceRepo.GetSessionAttempts(sessionID)
	if err != nil {
		return nil, err
	}
	stats, err := s.practiceRepo.GetOperationStats(sessionID)
	if err != nil {
		return nil, err
	}

	results := &SessionResults{
		Session:         session,
		Total:           session.TotalExercises,
		Correct:         session.CorrectAnswers,
		Accuracy:        session.Accuracy(),
		Duration:        session.Duration(),
		AverageTime:     decimal.Zero,
		OperationStats:  stats,
		AttemptsDetails: attempts,
	}
	if session.TotalExercises > 0 {
		seconds := decimal.NewFromFloat(results.Duration.Seconds())
		results.AverageTime = seconds.Div(decimal.NewFromInt(int64(session.TotalExercises))).Round(2)
	}
	return results, nil
}

// History lists the user's sessions, most recent first, with their combined
// accuracy
func (s *PracticeService) History(userID int64) (*SessionHistory, error) {
	sessions, err := s.practiceRepo.ListUserSessions(userID)
	if err != nil {
		return nil, err
	}

	history := &SessionHistory{Sessions: sessions}
	for _, session := range sessions {
		history.Total += session.TotalExercises
		history.Correct += session.CorrectAnswers
	}
	history.Accuracy = models.Percentage(history.Correct, history.Total)
	return history, nil
}

// ownedSession loads a session and hides other users' sessions
func (s *PracticeService) ownedSession(userID, sessionID int64) (*models.ExerciseSession, error) {
	session, err := s.practiceRepo.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID != userID {
		return nil, ErrExerciseSessionNotFound
	}
	return session, nil
}
