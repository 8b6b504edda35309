package repository

import (
	"fmt"
	"time"

	"mathdrill/internal/database"
	"mathdrill/internal/models"
)

// ActivityRepository appends to and reads the activity log. There is no
// update or delete.
type ActivityRepository struct {
	db database.DBTX
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ActivityRepository) WithTx(tx *database.Tx) *ActivityRepository {
	return &ActivityRepository{db: tx}
}

// Log appends an entry
func (r *ActivityRepository) Log(userID int64, activityType models.ActivityType, description string, at time.Time) (*models.ActivityLog, error) {
	at = at.UTC()
	query := "INSERT INTO activity_logs (user_id, activity_type, description, created_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(query, userID, string(activityType), description, at)
	if err != nil {
		return nil, fmt.Errorf("failed to log activity: %w", err)
	}
	return &models.ActivityLog{
		ID:           id,
		UserID:       userID,
		ActivityType: activityType,
		Description:  description,
		CreatedAt:    at,
	}, nil
}

// ListRecent returns a user's entries newest first. A limit of zero or less
// returns every entry.
func (r *ActivityRepository) ListRecent(userID int64, limit int) ([]models.ActivityLog, error) {
	query := `
		SELECT id, user_id, activity_type, description, created_at
		FROM activity_logs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.list(query, args...)
}

// ListAll returns every entry ordered by ID
func (r *ActivityRepository) ListAll() ([]models.ActivityLog, error) {
	return r.list("SELECT id, user_id, activity_type, description, created_at FROM activity_logs ORDER BY id")
}

func (r *ActivityRepository) list(query string, args ...interface{}) ([]models.ActivityLog, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ActivityLog
	for rows.Next() {
		var entry models.ActivityLog
		var activityType string
		if err := rows.Scan(&entry.ID, &entry.UserID, &activityType, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entry.ActivityType = models.ActivityType(activityType)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
