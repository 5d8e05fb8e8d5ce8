package repository

import (
	"context"
	"errors"

	syterrors "github.com/syt-tools/syt/internal/errors"
)

// Classify converts a backend error into the syt error taxonomy. A missing
// resource becomes a NotFoundError, rejected credentials an
// AuthorizationError, and anything else a RepositoryError.
func Classify(operation, entityID string, err error) error {
	if err == nil {
		return nil
	}
	var sytErr syterrors.SytError
	if errors.As(err, &sytErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrNotFound):
		resource := entityID
		if resource == "" {
			resource = operation
		}
		return syterrors.NewNotFoundError("entity", resource).WithCause(err)
	case errors.Is(err, ErrUnauthenticated):
		return syterrors.NewAuthorizationError(syterrors.AuthUnauthenticated, "log in").WithCause(err)
	case errors.Is(err, context.Canceled):
		return syterrors.NewRepositoryError(operation, err).WithEntityID(entityID)
	}
	return syterrors.NewRepositoryError(operation, err).
		WithEntityID(entityID).
		WithRetryable(IsRetryable(err) || errors.Is(err, context.DeadlineExceeded))
}
