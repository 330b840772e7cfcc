package services

import (
	"context"

	"github.com/adiosmsu/budgeter/internal/dto"
)

// MutationSvc submits funds mutations and currency exchanges, postponing the
// ones that cannot be priced on their day.
type MutationSvc interface {
	SubmitMutation(ctx context.Context, req dto.MutationRequest) (*dto.SubmissionResult, error)
	SubmitExchange(ctx context.Context, req dto.ExchangeRequest) (*dto.SubmissionResult, error)
}
