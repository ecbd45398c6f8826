package application

import (
	"context"
	"errors"

	"ringminter/internal/domain"
)

// Recorders fans a submission out to every configured recorder.
type Recorders []SubmissionRecorder

func (r Recorders) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	var errs []error
	for _, recorder := range r {
		if recorder == nil {
			continue
		}
		if err := recorder.RecordSubmission(ctx, submission); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
