package discovery

import "testing"

func TestDefaultGRPCPort(t *testing.T) {
	if got := LocalGRPCAddr("unknown"); got != "" {
		t.Fatalf("LocalGRPCAddr(unknown) = %q, want empty", got)
	}
	if got := DefaultGRPCPort(" placement "); got != 8095 {
		t.Fatalf("DefaultGRPCPort(placement) = %d", got)
	}
}

func TestOrLocalGRPCAddr(t *testing.T) {
	if got := LocalGRPCAddr(ServicePlacement); got != "localhost:8095" {
		t.Fatalf("LocalGRPCAddr(placement) = %q", got)
	}
	if got := OrLocalGRPCAddr(" 10.0.0.5:9000 ", ServicePlacement); got != "10.0.0.5:9000" {
		t.Fatalf("expected explicit addr to win, got %q", got)
	}
	if got := OrLocalGRPCAddr("", ServicePlacement); got != "localhost:8095" {
		t.Fatalf("expected local default, got %q", got)
	}
}
