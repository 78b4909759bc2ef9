package requestctx

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestRequestIDFromContextRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	if got := RequestIDFromContext(ctx); got != "req-42" {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, "req-42")
	}
	if got := RequestIDFromContext(nil); got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestLocaleFromIncomingMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(LocaleHeader, "th-TH"))
	if got := LocaleFromContext(ctx); got != "th-TH" {
		t.Fatalf("LocaleFromContext = %q, want th-TH", got)
	}
	if got := LocaleFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty locale without metadata, got %q", got)
	}
}

func TestWithOutgoingLocale(t *testing.T) {
	ctx := WithOutgoingLocale(context.Background(), " th-TH ")
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		t.Fatal("expected outgoing metadata")
	}
	if got := FirstMetadataValue(md, LocaleHeader); got != "th-TH" {
		t.Fatalf("outgoing locale = %q, want th-TH", got)
	}

	blank := WithOutgoingLocale(context.Background(), "")
	if _, ok := metadata.FromOutgoingContext(blank); ok {
		t.Fatal("blank locale should not add metadata")
	}
}

func TestFirstMetadataValueSkipsControlCharacters(t *testing.T) {
	md := metadata.MD{"x-soimap-locale": []string{"bad\x01", "en-US"}}
	if got := FirstMetadataValue(md, LocaleHeader); got != "en-US" {
		t.Fatalf("FirstMetadataValue = %q, want en-US", got)
	}
}

func TestUnaryServerInterceptorKeepsIncomingRequestID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, "req-in"))
	ctx = grpc.NewContextWithServerTransportStream(ctx, &fakeTransportStream{})
	interceptor := UnaryServerInterceptor(func() (string, error) { return "generated", nil })

	var seen string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "req-in" {
		t.Fatalf("request id = %q, want req-in", seen)
	}
}

func TestUnaryServerInterceptorGeneratesRequestID(t *testing.T) {
	stream := &fakeTransportStream{}
	ctx := grpc.NewContextWithServerTransportStream(context.Background(), stream)
	interceptor := UnaryServerInterceptor(func() (string, error) { return "generated", nil })

	var seen string
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "generated" {
		t.Fatalf("request id = %q, want generated", seen)
	}
	if got := FirstMetadataValue(stream.header, RequestIDHeader); got != "generated" {
		t.Fatalf("response header = %q, want generated", got)
	}
}

func TestUnaryServerInterceptorGeneratorFailure(t *testing.T) {
	interceptor := UnaryServerInterceptor(func() (string, error) { return "", errors.New("boom") })
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not run")
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

type fakeTransportStream struct {
	header metadata.MD
}

func (s *fakeTransportStream) Method() string { return "/placement.v1.PlacementService/MoveEntity" }

func (s *fakeTransportStream) SetHeader(md metadata.MD) error {
	s.header = metadata.Join(s.header, md)
	return nil
}

func (s *fakeTransportStream) SendHeader(md metadata.MD) error { return s.SetHeader(md) }

func (s *fakeTransportStream) SetTrailer(metadata.MD) error { return nil }
