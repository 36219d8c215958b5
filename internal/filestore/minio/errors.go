package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/hydrahub/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError classifies a minio-go error into an errs kind, keeping err as
// the cause. Status codes win over S3 error codes; anything unrecognised
// counts as a connection failure.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	return errs.Wrap(kindOf(err), msg, err)
}

func kindOf(err error) errs.ErrKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.ErrKindTimeout
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return errs.ErrKindConnectionFailed
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.ErrKindNotFound
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.ErrKindPermissionDenied
	case http.StatusBadRequest:
		return errs.ErrKindInvalidInput
	}

	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload":
		return errs.ErrKindNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errs.ErrKindPermissionDenied
	case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError":
		return errs.ErrKindInvalidInput
	case "RequestTimeout", "SlowDown":
		return errs.ErrKindTimeout
	}
	return errs.ErrKindConnectionFailed
}
