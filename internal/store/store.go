package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the job persistence interface. Implementations must be safe for concurrent use.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
}

type jobUpdateParams struct {
	ErrorMessage *string
	Result       *models.ReactionResult
}

type JobUpdateOption func(*jobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithResult(result *models.ReactionResult) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.Result = result
	}
}

func applyOptions(opts []JobUpdateOption) *jobUpdateParams {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}
	return params
}

var validTransitions = map[string][]string{
	models.JobStatusSubmitted:  {models.JobStatusProcessing, models.JobStatusFailed},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed},
}

// CheckTransition returns ErrInvalidTransition unless from -> to is a lifecycle edge.
func CheckTransition(from, to string) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
