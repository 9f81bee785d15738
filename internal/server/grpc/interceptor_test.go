package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/filehost/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestInterceptor_PassesThroughResponse(t *testing.T) {
	s := NewGRPCServer("", logging.Nop())

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_PassesThroughError(t *testing.T) {
	s := NewGRPCServer("", logging.Nop())

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	want := status.Error(codes.NotFound, "unknown service")

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, want
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil resp, got %v", resp)
	}
}
