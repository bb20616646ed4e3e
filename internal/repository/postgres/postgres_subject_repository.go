package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/honeynil/mdd-api/internal/models"
	pkgerrors "github.com/honeynil/mdd-api/pkg/errors"
)

type PostgresSubjectRepository struct {
	db *sql.DB
}

func NewPostgresSubjectRepository(db *sql.DB) *PostgresSubjectRepository {
	return &PostgresSubjectRepository{db: db}
}

func (r *PostgresSubjectRepository) List(ctx context.Context) (_ []models.Subject, err error) {
	ctx, done := startOp(ctx, "SubjectRepository.List")
	defer done(&err)

	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM subjects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	subjects := make([]models.Subject, 0)
	for rows.Next() {
		var s models.Subject
		if err = rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate subjects: %w", err)
	}
	return subjects, nil
}

func (r *PostgresSubjectRepository) GetByID(ctx context.Context, id int64) (_ *models.Subject, err error) {
	ctx, done := startOp(ctx, "SubjectRepository.GetByID")
	defer done(&err)

	var s models.Subject
	err = r.db.QueryRowContext(ctx, `SELECT id, name, description FROM subjects WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Description)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrSubjectNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get subject %d: %w", id, err)
	}
	return &s, nil
}
