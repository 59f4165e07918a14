// Package store persists completed analysis results in Postgres. The archive
// outlives the in-memory registry: a result stays queryable after its job
// record has been removed or the process restarted.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/trueform/formsight/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the result archive interface. Results are write-once; there is no
// update operation.
type Store interface {
	Ping(ctx context.Context) error
	SaveResult(ctx context.Context, result *models.Result) error
	GetResultByAnalysisID(ctx context.Context, analysisID uuid.UUID) (*models.Result, error)
	GetResultByVideoID(ctx context.Context, videoID uuid.UUID) (*models.Result, error)
}
