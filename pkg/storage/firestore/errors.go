package firestore

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	return ok && s.Code() == codes.NotFound
}

// grpcAlreadyExists reports whether err is a gRPC AlreadyExists status,
// the error Create returns when a document at that path already exists
// — the Firestore-native equivalent of KELStore.Append's first-writer-
// wins duplicate rejection.
func grpcAlreadyExists(err error) (isAlreadyExists bool, matched bool) {
	if err == nil {
		return false, false
	}
	s, ok := status.FromError(err)
	if !ok {
		return false, false
	}
	return s.Code() == codes.AlreadyExists, true
}
