package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"mathdrill/internal/database"
	"mathdrill/internal/repository"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string             `json:"version"`
	ExportedAt   time.Time          `json:"exported_at"`
	Difficulties []DifficultyBackup `json:"difficulty_levels"`
	Categories   []CategoryBackup   `json:"categories"`
	Users        []UserBackup       `json:"users"`
	Profiles     []ProfileBackup    `json:"profiles"`
	Progress     []ProgressBackup   `json:"progress"`
	Exercises    []ExerciseBackup   `json:"exercises"`
	Sessions     []SessionBackup    `json:"exercise_sessions"`
	Attempts     []AttemptBackup    `json:"exercise_attempts"`
	Activities   []ActivityBackup   `json:"activity_logs"`
}

// DifficultyBackup is a difficulty level row
type DifficultyBackup struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// CategoryBackup is a category row
type CategoryBackup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UserBackup represents a user record for backup
type UserBackup struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	PasswordHash  string    `json:"password_hash"`
	OAuthProvider string    `json:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileBackup represents a profile record for backup
type ProfileBackup struct {
	UserID     int64      `json:"user_id"`
	GradeLevel int        `json:"grade_level"`
	BirthDate  *time.Time `json:"birth_date"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProgressBackup represents a progress aggregate for backup
type ProgressBackup struct {
	UserID                int64      `json:"user_id"`
	TotalExercises        int        `json:"total_exercises"`
	CorrectAnswers        int        `json:"correct_answers"`
	TotalTimeSpent        int64      `json:"total_time_spent"`
	LastActivity          *time.Time `json:"last_activity"`
	AdditionTotal         int        `json:"addition_total"`
	AdditionCorrect       int        `json:"addition_correct"`
	SubtractionTotal      int        `json:"subtraction_total"`
	SubtractionCorrect    int        `json:"subtraction_correct"`
	MultiplicationTotal   int        `json:"multiplication_total"`
	MultiplicationCorrect int        `json:"multiplication_correct"`
	DivisionTotal         int        `json:"division_total"`
	DivisionCorrect       int        `json:"division_correct"`
}

// ExerciseBackup represents a generated exercise for backup
type ExerciseBackup struct {
	ID            int64           `json:"id"`
	Question      string          `json:"question"`
	Answer        decimal.Decimal `json:"answer"`
	OperationType string          `json:"operation_type"`
	DifficultyID  int64           `json:"difficulty_id"`
	CategoryID    int64           `json:"category_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SessionBackup represents an exercise session for backup
type SessionBackup struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	DifficultyID   int64      `json:"difficulty_id"`
	CategoryID     int64      `json:"category_id"`
	OperationType  string     `json:"operation_type"`
	TotalExercises int        `json:"total_exercises"`
	CorrectAnswers int        `json:"correct_answers"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

// AttemptBackup represents an answer for backup
type AttemptBackup struct {
	ID         int64           `json:"id"`
	SessionID  int64           `json:"session_id"`
	ExerciseID int64           `json:"exercise_id"`
	UserAnswer decimal.Decimal `json:"user_answer"`
	IsCorrect  bool            `json:"is_correct"`
	TimeTaken  int             `json:"time_taken"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ActivityBackup represents an activity log entry for backup
type ActivityBackup struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// ClearOrder lists the tables an import with --clear empties, children first
var ClearOrder = []string{
	"practice_contexts",
	"activity_logs",
	"exercise_attempts",
	"exercise_sessions",
	"exercises",
	"progress",
	"profiles",
	"sessions",
	"users",
}

// tables with generated ids whose postgres sequences follow an import
var sequenceTables = []string{
	"difficulty_levels", "categories", "users", "exercises",
	"exercise_sessions", "exercise_attempts", "activity_logs",
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db *database.DB
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// Export writes a complete backup of the database to a file
func (s *BackupService) Export(outputPath string) (*BackupData, error) {
	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	backup, err := s.ExportToWriter(file)
	if err != nil {
		return nil, err
	}

	log.Printf("Database exported successfully to %s", outputPath)
	return backup, nil
}

// ExportToWriter encodes a complete backup to w
func (s *BackupService) ExportToWriter(w io.Writer) (*BackupData, error) {
	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
	}

	steps := []struct {
		name string
		fn   func(*BackupData) error
	}{
		{"difficulty levels", s.exportDifficulties},
		{"categories", s.exportCategories},
		{"users", s.exportUsers},
		{"profiles", s.exportProfiles},
		{"progress", s.exportProgress},
		{"exercises", s.exportExercises},
		{"sessions", s.exportSessions},
		{"attempts", s.exportAttempts},
		{"activity logs", s.exportActivities},
	}
	for _, step := range steps {
		if err := step.fn(backup); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", step.name, err)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Printf("Exported: %d users, %d exercises, %d sessions, %d attempts, %d activities",
		len(backup.Users), len(backup.Exercises), len(backup.Sessions), len(backup.Attempts), len(backup.Activities))
	return backup, nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clearFirst bool) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clearFirst)
}

// ImportFromReader restores a backup in one transaction. With clearFirst set the
// account and practice tables are emptied first; reference data is only
// inserted where missing.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, clearFirst bool) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		if clearFirst {
			for _, table := range ClearOrder {
				if _, err := tx.Exec("DELETE FROM " + table); err != nil {
					return fmt.Errorf("failed to clear table %s: %w", table, err)
				}
			}
		}

		steps := []struct {
			name string
			fn   func(*database.Tx, *BackupData) error
		}{
			{"reference data", importReferenceData},
			{"users", importUsers},
			{"profiles", importProfiles},
			{"progress", importProgress},
			{"exercises", importExercises},
			{"sessions", importSessions},
			{"attempts", importAttempts},
			{"activity logs", importActivities},
		}
		for _, step := range steps {
			if err := step.fn(tx, &backup); err != nil {
				return fmt.Errorf("failed to import %s: %w", step.name, err)
			}
		}
		return resetSequences(tx)
	})
	if err != nil {
		return err
	}

	log.Println("Database import completed successfully")
	return nil
}

func (s *BackupService) exportDifficulties(backup *BackupData) error {
	rows, err := s.db.Query("SELECT id, name, value FROM difficulty_levels ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d DifficultyBackup
		if err := rows.Scan(&d.ID, &d.Name, &d.Value); err != nil {
			return err
		}
		backup.Difficulties = append(backup.Difficulties, d)
	}
	return rows.Err()
}

func (s *BackupService) exportCategories(backup *BackupData) error {
	rows, err := s.db.Query("SELECT id, name, description FROM categories ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c CategoryBackup
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return err
		}
		backup.Categories = append(backup.Categories, c)
	}
	return rows.Err()
}

func (s *BackupService) exportUsers(backup *BackupData) error {
	query := `SELECT id, username, email, first_name, last_name, password_hash,
		COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''), created_at, updated_at
		FROM users ORDER BY id`
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var u UserBackup
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
			&u.OAuthProvider, &u.OAuthSubject, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		backup.Users = append(backup.Users, u)
	}
	return rows.Err()
}

func (s *BackupService) exportProfiles(backup *BackupData) error {
	rows, err := s.db.Query("SELECT user_id, grade_level, birth_date, updated_at FROM profiles ORDER BY user_id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p ProfileBackup
		var birthDate sql.NullTime
		if err := rows.Scan(&p.UserID, &p.GradeLevel, &birthDate, &p.UpdatedAt); err != nil {
			return err
		}
		p.BirthDate = timePtr(birthDate)
		backup.Profiles = append(backup.Profiles, p)
	}
	return rows.Err()
}

func (s *BackupService) exportProgress(backup *BackupData) error {
	query := `SELECT user_id, total_exercises, correct_answers, total_time_spent, last_activity,
		addition_total, addition_correct, subtraction_total, subtraction_correct,
		multiplication_total, multiplication_correct, division_total, division_correct
		FROM progress ORDER BY user_id`
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p ProgressBackup
		var lastActivity sql.NullTime
		if err := rows.Scan(&p.UserID, &p.TotalExercises, &p.CorrectAnswers, &p.TotalTimeSpent, &lastActivity,
			&p.AdditionTotal, &p.AdditionCorrect, &p.SubtractionTotal, &p.SubtractionCorrect,
			&p.MultiplicationTotal, &p.MultiplicationCorrect, &p.DivisionTotal, &p.DivisionCorrect); err != nil {
			return err
		}
		p.LastActivity = timePtr(lastActivity)
		backup.Progress = append(backup.Progress, p)
	}
	return rows.Err()
}

func (s *BackupService) exportExercises(backup *BackupData) error {
	rows, err := s.db.Query("SELECT id, question, answer, operation_type, difficulty_id, category_id, created_at FROM exercises ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e ExerciseBackup
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &e.OperationType, &e.DifficultyID, &e.CategoryID, &e.CreatedAt); err != nil {
			return err
		}
		backup.Exercises = append(backup.Exercises, e)
	}
	return rows.Err()
}

func (s *BackupService) exportSessions(backup *BackupData) error {
	sessions, err := repository.NewPracticeRepository(s.db).ListAllSessions()
	if err != nil {
		return err
	}
	for _, session := range sessions {
		backup.Sessions = append(backup.Sessions, SessionBackup{
			ID:             session.ID,
			UserID:         session.UserID,
			DifficultyID:   session.DifficultyID,
			CategoryID:     session.CategoryID,
			OperationType:  string(session.OperationType),
			TotalExercises: session.TotalExercises,
			CorrectAnswers: session.CorrectAnswers,
			StartTime:      session.StartTime,
			EndTime:        session.EndTime,
		})
	}
	return nil
}

func (s *BackupService) exportAttempts(backup *BackupData) error {
	rows, err := s.db.Query("SELECT id, session_id, exercise_id, user_answer, is_correct, time_taken, created_at FROM exercise_attempts ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a AttemptBackup
		if err := rows.Scan(&a.ID, &a.SessionID, &a.ExerciseID, &a.UserAnswer, &a.IsCorrect, &a.TimeTaken, &a.CreatedAt); err != nil {
			return err
		}
		backup.Attempts = append(backup.Attempts, a)
	}
	return rows.Err()
}

func (s *BackupService) exportActivities(backup *BackupData) error {
	entries, err := repository.NewActivityRepository(s.db).ListAll()
	if err != nil {
		return err
	}
	for _, entry := range entries {
		backup.Activities = append(backup.Activities, ActivityBackup{
			ID:           entry.ID,
			UserID:       entry.UserID,
			ActivityType: string(entry.ActivityType),
			Description:  entry.Description,
			CreatedAt:    entry.CreatedAt,
		})
	}
	return nil
}

func importReferenceData(tx *database.Tx, backup *BackupData) error {
	for _, d := range backup.Difficulties {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM difficulty_levels WHERE id = ?", d.ID).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		if _, err := tx.Exec("INSERT INTO difficulty_levels (id, name, value) VALUES (?, ?, ?)", d.ID, d.Name, d.Value); err != nil {
			return fmt.Errorf("difficulty %d: %w", d.ID, err)
		}
	}
	for _, c := range backup.Categories {
		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM categories WHERE id = ?", c.ID).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		if _, err := tx.Exec("INSERT INTO categories (id, name, description) VALUES (?, ?, ?)", c.ID, c.Name, c.Description); err != nil {
			return fmt.Errorf("category %d: %w", c.ID, err)
		}
	}
	return nil
}

func importUsers(tx *database.Tx, backup *BackupData) error {
	log.Printf("Importing %d users...", len(backup.Users))
	query := `INSERT INTO users (id, username, email, first_name, last_name, password_hash,
		oauth_provider, oauth_subject, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, u := range backup.Users {
		if _, err := tx.Exec(query, u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
			nullIfEmpty(u.OAuthProvider), nullIfEmpty(u.OAuthSubject), u.CreatedAt, u.UpdatedAt); err != nil {
			return fmt.Errorf("user %d: %w", u.ID, err)
		}
	}
	return nil
}

func importProfiles(tx *database.Tx, backup *BackupData) error {
	query := "INSERT INTO profiles (user_id, grade_level, birth_date, updated_at) VALUES (?, ?, ?, ?)"
	for _, p := range backup.Profiles {
		if _, err := tx.Exec(query, p.UserID, p.GradeLevel, nullTimeValue(p.BirthDate), p.UpdatedAt); err != nil {
			return fmt.Errorf("profile %d: %w", p.UserID, err)
		}
	}
	return nil
}

func importProgress(tx *database.Tx, backup *BackupData) error {
	query := `INSERT INTO progress (user_id, total_exercises, correct_answers, total_time_spent, last_activity,
		addition_total, addition_correct, subtraction_total, subtraction_correct,
		multiplication_total, multiplication_correct, division_total, division_correct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, p := range backup.Progress {
		if _, err := tx.Exec(query, p.UserID, p.TotalExercises, p.CorrectAnswers, p.TotalTimeSpent, nullTimeValue(p.LastActivity),
			p.AdditionTotal, p.AdditionCorrect, p.SubtractionTotal, p.SubtractionCorrect,
			p.MultiplicationTotal, p.MultiplicationCorrect, p.DivisionTotal, p.DivisionCorrect); err != nil {
			return fmt.Errorf("progress %d: %w", p.UserID, err)
		}
	}
	return nil
}

func importExercises(tx *database.Tx, backup *BackupData) error {
	log.Printf("Importing %d exercises...", len(backup.Exercises))
	query := "INSERT INTO exercises (id, question, answer, operation_type, difficulty_id, category_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	for _, e := range backup.Exercises {
		if _, err := tx.Exec(query, e.ID, e.Question, e.Answer, e.OperationType, e.DifficultyID, e.CategoryID, e.CreatedAt); err != nil {
			return fmt.Errorf("exercise %d: %w", e.ID, err)
		}
	}
	return nil
}

func importSessions(tx *database.Tx, backup *BackupData) error {
	log.Printf("Importing %d exercise sessions...", len(backup.Sessions))
	query := `INSERT INTO exercise_sessions (id, user_id, difficulty_id, category_id, operation_type,
		total_exercises, correct_answers, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, e := range backup.Sessions {
		if _, err := tx.Exec(query, e.ID, e.UserID, e.DifficultyID, e.CategoryID, e.OperationType,
			e.TotalExercises, e.CorrectAnswers, e.StartTime, nullTimeValue(e.EndTime)); err != nil {
			return fmt.Errorf("session %d: %w", e.ID, err)
		}
	}
	return nil
}

func importAttempts(tx *database.Tx, backup *BackupData) error {
	query := "INSERT INTO exercise_attempts (id, session_id, exercise_id, user_answer, is_correct, time_taken, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	for _, a := range backup.Attempts {
		if _, err := tx.Exec(query, a.ID, a.SessionID, a.ExerciseID, a.UserAnswer, a.IsCorrect, a.TimeTaken, a.CreatedAt); err != nil {
			return fmt.Errorf("attempt %d: %w", a.ID, err)
		}
	}
	return nil
}

func importActivities(tx *database.Tx, backup *BackupData) error {
	query := "INSERT INTO activity_logs (id, user_id, activity_type, description, created_at) VALUES (?, ?, ?, ?, ?)"
	for _, a := range backup.Activities {
		if _, err := tx.Exec(query, a.ID, a.UserID, a.ActivityType, a.Description, a.CreatedAt); err != nil {
			return fmt.Errorf("activity %d: %w", a.ID, err)
		}
	}
	return nil
}

// resetSequences moves postgres id sequences past the imported ids. SQLite
// and MySQL advance their counters on explicit inserts.
func resetSequences(tx *database.Tx) error {
	if tx.GetDialect().DriverName() != "postgres" {
		return nil
	}
	for _, table := range sequenceTables {
		query := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 0) + 1, false) FROM %s", table, table)
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
		}
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func nullTimeValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
