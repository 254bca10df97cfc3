package grpcstore

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"odinprotocol.io/odin/storage"
)

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		return storage.ErrInvalidKey
	case codes.FailedPrecondition:
		// Server uses FailedPrecondition for immutability violations.
		return storage.ErrImmutable
	case codes.DataLoss:
		// Server uses DataLoss when bytes do not match the requested key.
		return storage.ErrCIDMismatch
	default:
		// Best-effort: if the server sent a known storage error message,
		// preserve it.
		switch st.Message() {
		case storage.ErrNotFound.Error():
			return storage.ErrNotFound
		case storage.ErrInvalidKey.Error():
			return storage.ErrInvalidKey
		case storage.ErrImmutable.Error():
			return storage.ErrImmutable
		case storage.ErrCIDMismatch.Error():
			return storage.ErrCIDMismatch
		default:
			return err
		}
	}
}
