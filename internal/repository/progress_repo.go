package repository

import (
	"database/sql"
	"fmt"

	"mathdrill/internal/database"
	"mathdrill/internal/models"
)

// ProgressRepository persists the per-user progress aggregate
type ProgressRepository struct {
	db database.DBTX
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(db database.DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ProgressRepository) WithTx(tx *database.Tx) *ProgressRepository {
	return &ProgressRepository{db: tx}
}

// CreateProgress inserts an empty aggregate for a new user
func (r *ProgressRepository) CreateProgress(userID int64) (*models.Progress, error) {
	if _, err := r.db.Exec("INSERT INTO progress (user_id) VALUES (?)", userID); err != nil {
		return nil, fmt.Errorf("failed to create progress: %w", err)
	}
	return models.NewProgress(userID), nil
}

// GetProgress retrieves a user's aggregate, or nil when none exists
func (r *ProgressRepository) GetProgress(userID int64) (*models.Progress, error) {
	query := `
		SELECT user_id, total_exercises, correct_answers, total_time_spent, last_activity,
		       addition_total, addition_correct,
		       subtraction_total, subtraction_correct,
		       multiplication_total, multiplication_correct,
		       division_total, division_correct
		FROM progress
		WHERE user_id = ?
	`
	p := &models.Progress{}
	var lastActivity sql.NullTime
	err := r.db.QueryRow(query, userID).Scan(
		&p.UserID,
		&p.TotalExercises,
		&p.CorrectAnswers,
		&p.TotalTimeSpent,
		&lastActivity,
		&p.Addition.Total, &p.Addition.Correct,
		&p.Subtraction.Total, &p.Subtraction.Correct,
		&p.Multiplication.Total, &p.Multiplication.Correct,
		&p.Division.Total, &p.Division.Correct,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if lastActivity.Valid {
		p.LastActivity = &lastActivity.Time
	}
	return p, nil
}

// UpdateProgress writes every counter of the aggregate
func (r *ProgressRepository) UpdateProgress(p *models.Progress) error {
	query := `
		UPDATE progress
		SET total_exercises = ?, correct_answers = ?, total_time_spent = ?, last_activity = ?,
		    addition_total = ?, addition_correct = ?,
		    subtraction_total = ?, subtraction_correct = ?,
		    multiplication_total = ?, multiplication_correct = ?,
		    division_total = ?, division_correct = ?
		WHERE user_id = ?
	`
	result, err := r.db.Exec(query,
		p.TotalExercises, p.CorrectAnswers, p.TotalTimeSpent, nullTime(p.LastActivity),
		p.Addition.Total, p.Addition.Correct,
		p.Subtraction.Total, p.Subtraction.Correct,
		p.Multiplication.Total, p.Multiplication.Correct,
		p.Division.Total, p.Division.Correct,
		p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read progress update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("failed to update progress: no row for user %d", p.UserID)
	}
	return nil
}
