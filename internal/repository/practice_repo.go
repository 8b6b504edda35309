package repository

import (
	"database/sql"
	"fmt"
	"time"

	"mathdrill/internal/database"
	"mathdrill/internal/models"
)

const sessionColumns = `id, user_id, difficulty_id, category_id, operation_type,
	total_exercises, correct_answers, start_time, end_time`

// PracticeRepository handles exercise sessions, attempts and the per-user
// practice context
type PracticeRepository struct {
	db database.DBTX
}

// NewPracticeRepository creates a new practice repository
func NewPracticeRepository(db database.DBTX) *PracticeRepository {
	return &PracticeRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *PracticeRepository) WithTx(tx *database.Tx) *PracticeRepository {
	return &PracticeRepository{db: tx}
}

// CreateSession opens a new exercise session
func (r *PracticeRepository) CreateSession(session *models.ExerciseSession) error {
	query := `
		INSERT INTO exercise_sessions
			(user_id, difficulty_id, category_id, operation_type, total_exercises, correct_answers, start_time)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`
	id, err := r.db.ExecReturningID(query,
		session.UserID,
		session.DifficultyID,
		session.CategoryID,
		string(session.OperationType),
		session.TotalExercises,
		session.StartTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create exercise session: %w", err)
	}
	session.ID = id
	session.CorrectAnswers = 0
	return nil
}

func scanSession(row interface{ Scan(...interface{}) error }) (*models.ExerciseSession, error) {
	session := &models.ExerciseSession{}
	var operation string
	var endTime sql.NullTime
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.DifficultyID,
		&session.CategoryID,
		&operation,
		&session.TotalExercises,
		&session.CorrectAnswers,
		&session.StartTime,
		&endTime,
	)
	if err != nil {
		return nil, err
	}
	session.OperationType = models.Operation(operation)
	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	return session, nil
}

// GetSession retrieves an exercise session by ID
func (r *PracticeRepository) GetSession(id int64) (*models.ExerciseSession, error) {
	query := "SELECT " + sessionColumns + " FROM exercise_sessions WHERE id = ?"
	session, err := scanSession(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise session: %w", err)
	}
	return session, nil
}

// ListUserSessions returns a user's sessions, newest first
func (r *PracticeRepository) ListUserSessions(userID int64) ([]models.ExerciseSession, error) {
	return r.listSessions("SELECT "+sessionColumns+" FROM exercise_sessions WHERE user_id = ? ORDER BY start_time DESC, id DESC", userID)
}

// ListAllSessions returns every session ordered by ID
func (r *PracticeRepository) ListAllSessions() ([]models.ExerciseSession, error) {
	return r.listSessions("SELECT " + sessionColumns + " FROM exercise_sessions ORDER BY id")
}

func (r *PracticeRepository) listSessions(query string, args ...interface{}) ([]models.ExerciseSession, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercise sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ExerciseSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// IncrementCorrect adds one correct answer to an open session. It reports
// false when the session is closed or already at its target count.
func (r *PracticeRepository) IncrementCorrect(sessionID int64) (bool, error) {
	query := `
		UPDATE exercise_sessions
		SET correct_answers = correct_answers + 1
		WHERE id = ? AND end_time IS NULL AND correct_answers < total_exercises
	`
	result, err := r.db.Exec(query, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to increment correct answers: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read increment result: %w", err)
	}
	return rows == 1, nil
}

// CloseSession sets end_time on an open session. It reports false when the
// session was already closed.
func (r *PracticeRepository) CloseSession(sessionID int64, endTime time.Time) (bool, error) {
	result, err := r.db.Exec(
		"UPDATE exercise_sessions SET end_time = ? WHERE id = ? AND end_time IS NULL",
		endTime.UTC(), sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to close exercise session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read close result: %w", err)
	}
	return rows == 1, nil
}

// CreateAttempt records an answer on an open session. It reports false, and
// records nothing, when the session has already been closed.
func (r *PracticeRepository) CreateAttempt(attempt *models.ExerciseAttempt) (bool, error) {
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO exercise_attempts (session_id, exercise_id, user_answer, is_correct, time_taken, created_at)
		SELECT id, ?, ?, ?, ?, ?
		FROM exercise_sessions
		WHERE id = ? AND end_time IS NULL
	`
	id, err := r.db.ExecReturningID(query,
		attempt.ExerciseID,
		attempt.UserAnswer,
		attempt.IsCorrect,
		attempt.TimeTaken,
		attempt.CreatedAt,
		attempt.SessionID,
	)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create exercise attempt: %w", err)
	}
	attempt.ID = id
	return true, nil
}

// GetSessionAttempts returns a session's attempts with their exercise data
func (r *PracticeRepository) GetSessionAttempts(sessionID int64) ([]models.ExerciseAttempt, error) {
	query := `
		SELECT a.id, a.session_id, a.exercise_id, a.user_answer, a.is_correct, a.time_taken, a.created_at,
		       e.operation_type, e.question, e.answer
		FROM exercise_attempts a
		JOIN exercises e ON e.id = a.exercise_id
		WHERE a.session_id = ?
		ORDER BY a.id
	`
	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exercise attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.ExerciseAttempt
	for rows.Next() {
		var attempt models.ExerciseAttempt
		var operation string
		if err := rows.Scan(
			&attempt.ID,
			&attempt.SessionID,
			&attempt.ExerciseID,
			&attempt.UserAnswer,
			&attempt.IsCorrect,
			&attempt.TimeTaken,
			&attempt.CreatedAt,
			&operation,
			&attempt.Question,
			&attempt.Answer,
		); err != nil {
			return nil, fmt.Errorf("failed to scan exercise attempt: %w", err)
		}
		attempt.OperationType = models.Operation(operation)
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// GetOperationStats groups a session's attempts by operation
func (r *PracticeRepository) GetOperationStats(sessionID int64) ([]models.OperationStats, error) {
	correct := r.db.GetDialect().BoolValue(true)
	query := `
		SELECT e.operation_type, COUNT(*),
		       SUM(CASE WHEN a.is_correct = ` + correct + ` THEN 1 ELSE 0 END)
		FROM exercise_attempts a
		JOIN exercises e ON e.id = a.exercise_id
		WHERE a.session_id = ?
		GROUP BY e.operation_type
	`
	rows, err := r.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation stats: %w", err)
	}
	defer rows.Close()

	byOperation := make(map[models.Operation]models.OperationStats)
	for rows.Next() {
		var stats models.OperationStats
		var operation string
		if err := rows.Scan(&operation, &stats.Total, &stats.Correct); err != nil {
			return nil, fmt.Errorf("failed to scan operation stats: %w", err)
		}
		stats.Operation = models.Operation(operation)
		byOperation[stats.Operation] = stats
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var result []models.OperationStats
	for _, op := range models.Operations {
		if stats, ok := byOperation[op]; ok {
			result = append(result, stats)
		}
	}
	return result, nil
}

// SaveContext stores the single practice context slot of a user
func (r *PracticeRepository) SaveContext(userID int64, pc *models.PracticeContext) error {
	payload, err := models.MarshalPracticeContext(pc)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(r.db.GetDialect().UpsertPracticeContextQuery(), userID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save practice context: %w", err)
	}
	return nil
}

// GetContext loads a user's practice context, or nil when none is stored
func (r *PracticeRepository) GetContext(userID int64) (*models.PracticeContext, error) {
	var payload string
	err := r.db.QueryRow("SELECT payload FROM practice_contexts WHERE user_id = ?", userID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get practice context: %w", err)
	}
	return models.UnmarshalPracticeContext(payload)
}

// DeleteContext clears a user's practice context
func (r *PracticeRepository) DeleteContext(userID int64) error {
	if _, err := r.db.Exec("DELETE FROM practice_contexts WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete practice context: %w", err)
	}
	return nil
}
