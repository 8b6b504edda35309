package repository

import (
	"database/sql"
	"fmt"
	"time"

	"mathdrill/internal/database"
	"mathdrill/internal/models"
)

// ExerciseRepository handles reference data and generated exercises
type ExerciseRepository struct {
	db database.DBTX
}

// NewExerciseRepository creates a new exercise repository
func NewExerciseRepository(db database.DBTX) *ExerciseRepository {
	return &ExerciseRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ExerciseRepository) WithTx(tx *database.Tx) *ExerciseRepository {
	return &ExerciseRepository{db: tx}
}

// ListDifficulties returns all difficulty levels ordered by value
func (r *ExerciseRepository) ListDifficulties() ([]models.DifficultyLevel, error) {
	rows, err := r.db.Query("SELECT id, name, value FROM difficulty_levels ORDER BY value")
	if err != nil {
		return nil, fmt.Errorf("failed to query difficulty levels: %w", err)
	}
	defer rows.Close()

	var levels []models.DifficultyLevel
	for rows.Next() {
		var level models.DifficultyLevel
		if err := rows.Scan(&level.ID, &level.Name, &level.Value); err != nil {
			return nil, fmt.Errorf("failed to scan difficulty level: %w", err)
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// GetDifficulty retrieves a difficulty level by ID
func (r *ExerciseRepository) GetDifficulty(id int64) (*models.DifficultyLevel, error) {
	level := &models.DifficultyLevel{}
	err := r.db.QueryRow("SELECT id, name, value FROM difficulty_levels WHERE id = ?", id).
		Scan(&level.ID, &level.Name, &level.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get difficulty level: %w", err)
	}
	return level, nil
}

// ListCategories returns all categories ordered by name
func (r *ExerciseRepository) ListCategories() ([]models.Category, error) {
	rows, err := r.db.Query("SELECT id, name, description FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		if err := rows.Scan(&category.ID, &category.Name, &category.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// GetCategory retrieves a category by ID
func (r *ExerciseRepository) GetCategory(id int64) (*models.Category, error) {
	category := &models.Category{}
	err := r.db.QueryRow("SELECT id, name, description FROM categories WHERE id = ?", id).
		Scan(&category.ID, &category.Name, &category.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return category, nil
}

// GetDefaultCategory returns the first seeded category
func (r *ExerciseRepository) GetDefaultCategory() (*models.Category, error) {
	category := &models.Category{}
	err := r.db.QueryRow("SELECT id, name, description FROM categories ORDER BY id LIMIT 1").
		Scan(&category.ID, &category.Name, &category.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default category: %w", err)
	}
	return category, nil
}

// CreateExercise stores a generated exercise
func (r *ExerciseRepository) CreateExercise(exercise *models.Exercise) error {
	if exercise.CreatedAt.IsZero() {
		exercise.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO exercises (question, answer, operation_type, difficulty_id, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		exercise.Question,
		exercise.Answer,
		string(exercise.OperationType),
		exercise.DifficultyID,
		exercise.CategoryID,
		exercise.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}
	exercise.ID = id
	return nil
}

// GetExercise retrieves an exercise by ID
func (r *ExerciseRepository) GetExercise(id int64) (*models.Exercise, error) {
	query := `
		SELECT id, question, answer, operation_type, difficulty_id, category_id, created_at
		FROM exercises
		WHERE id = ?
	`
	exercise := &models.Exercise{}
	var operation string
	err := r.db.QueryRow(query, id).Scan(
		&exercise.ID,
		&exercise.Question,
		&exercise.Answer,
		&operation,
		&exercise.DifficultyID,
		&exercise.CategoryID,
		&exercise.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	exercise.OperationType = models.Operation(operation)
	return exercise, nil
}
