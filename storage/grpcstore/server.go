// Package grpcstore exposes a storage.Store over gRPC.
//
// The remote service is content-addressed: the server derives the CID
// key from the bytes it receives, and both ends re-verify the CID
// contract so neither a buggy peer nor a corrupted transfer can bind
// bytes to the wrong key.
package grpcstore

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"odinprotocol.io/odin/cidutil"
	"odinprotocol.io/odin/storage"
)

// Server exposes a storage.Store over the Store gRPC service.
type Server struct {
	UnimplementedStoreServer
	Store storage.Store
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b := in.GetValue()
	key, err := storage.PutContent(ctx, s.Store, b)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(key), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	key := in.GetValue()
	if err := cidutil.Validate(key); err != nil {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidKey.Error())
	}
	b, err := storage.GetContent(ctx, s.Store, key)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Exists(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	key := in.GetValue()
	if err := cidutil.Validate(key); err != nil {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidKey.Error())
	}
	ok, err := s.Store.Exists(ctx, key)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) List(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	keys, err := s.Store.List(ctx, in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = k
	}
	out, err := structpb.NewList(vals)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case storage.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case err == storage.ErrInvalidKey:
		return status.Error(codes.InvalidArgument, err.Error())
	case err == storage.ErrImmutable:
		return status.Error(codes.FailedPrecondition, err.Error())
	case err == storage.ErrCIDMismatch:
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
