package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trueform/formsight/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveResult archives a completed result. The primary key on analysis_id
// enforces write-once; a second write maps to ErrDuplicateKey.
func (s *PostgresStore) SaveResult(ctx context.Context, result *models.Result) error {
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	fb := result.Feedback
	if fb == nil {
		fb = []models.Feedback{}
	}
	feedback, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	// Columns are NOT NULL; nil slices would encode as SQL NULL.
	strengths := result.Strengths
	if strengths == nil {
		strengths = []string{}
	}
	weaknesses := result.Weaknesses
	if weaknesses == nil {
		weaknesses = []string{}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analysis_results
		   (analysis_id, video_id, sport, exercise_type, overall_score, scores, feedback,
		    strengths, weaknesses, frames_analyzed, processing_time, analyzed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		result.AnalysisID, result.VideoID, result.Sport, result.ExerciseType,
		result.OverallScore, scores, feedback, strengths, weaknesses,
		result.FramesAnalyzed, result.ProcessingTime, result.AnalyzedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("save analysis result: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResultByAnalysisID(ctx context.Context, analysisID uuid.UUID) (*models.Result, error) {
	return s.getResult(ctx, `WHERE analysis_id = $1`, analysisID)
}

func (s *PostgresStore) GetResultByVideoID(ctx context.Context, videoID uuid.UUID) (*models.Result, error) {
	return s.getResult(ctx, `WHERE video_id = $1`, videoID)
}

func (s *PostgresStore) getResult(ctx context.Context, where string, arg any) (*models.Result, error) {
	var r models.Result
	var scores, feedback []byte
	err := s.pool.QueryRow(ctx,
		`SELECT analysis_id, video_id, sport, exercise_type, overall_score, scores, feedback,
		        strengths, weaknesses, frames_analyzed, processing_time, analyzed_at
		 FROM analysis_results `+where, arg,
	).Scan(&r.AnalysisID, &r.VideoID, &r.Sport, &r.ExerciseType, &r.OverallScore,
		&scores, &feedback, &r.Strengths, &r.Weaknesses, &r.FramesAnalyzed,
		&r.ProcessingTime, &r.AnalyzedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis result: %w", err)
	}

	if err := json.Unmarshal(scores, &r.Scores); err != nil {
		return nil, fmt.Errorf("unmarshal scores: %w", err)
	}
	if err := json.Unmarshal(feedback, &r.Feedback); err != nil {
		return nil, fmt.Errorf("unmarshal feedback: %w", err)
	}
	return &r, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
