package rpc

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	apperrors "github.com/lcrostarosa/vigil/internal/errors"
)

// toConnectError maps engine errors onto connect codes. Messages are
// sanitized before they leave the process.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, apperrors.ErrNotConfigured):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, apperrors.ErrInvalidTimeOfDay),
		errors.Is(err, apperrors.ErrEmptyWindow),
		errors.Is(err, apperrors.ErrInvalidDelay),
		errors.Is(err, apperrors.ErrNoContact),
		errors.Is(err, apperrors.ErrInvalidContact):
		code = connect.CodeInvalidArgument
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, errors.New(apperrors.SanitizeError(err)))
}

// fromConnectError turns a client-side connect error back into the sentinel
// errors callers test with errors.Is.
func fromConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Code() {
	case connect.CodeUnavailable:
		return fmt.Errorf("%w: %s", apperrors.ErrDaemonUnreachable, ce.Message())
	case connect.CodeUnauthenticated:
		return apperrors.ErrUnauthorized
	case connect.CodeFailedPrecondition:
		return apperrors.ErrNotConfigured
	case connect.CodeInvalidArgument:
		return fmt.Errorf("invalid request: %s", ce.Message())
	}
	return err
}
