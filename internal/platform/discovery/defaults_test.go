package discovery

import "testing"

func TestDefaultHTTPAddr(t *testing.T) {
	if got := DefaultHTTPAddr(ServiceForthcoming); got != "forthcoming:8095" {
		t.Fatalf("DefaultHTTPAddr(%q) = %q, want %q", ServiceForthcoming, got, "forthcoming:8095")
	}
	if got := DefaultHTTPAddr("unknown"); got != "" {
		t.Fatalf("DefaultHTTPAddr(unknown) = %q, want empty", got)
	}
}

func TestOrDefaultHTTPListenAddr(t *testing.T) {
	if got := OrDefaultHTTPListenAddr(" 127.0.0.1:9000 ", ServiceForthcoming); got != "127.0.0.1:9000" {
		t.Fatalf("expected explicit listen addr to win, got %q", got)
	}
	if got := OrDefaultHTTPListenAddr("", ServiceForthcoming); got != ":8095" {
		t.Fatalf("expected default listen addr, got %q", got)
	}
}

func TestOrDefaultGRPCPort(t *testing.T) {
	if got := OrDefaultGRPCPort(9196, ServiceForthcoming); got != 9196 {
		t.Fatalf("expected explicit port to win, got %d", got)
	}
	if got := OrDefaultGRPCPort(0, ServiceForthcoming); got != 8096 {
		t.Fatalf("expected default grpc port, got %d", got)
	}
	if got := OrDefaultGRPCPort(-1, "unknown"); got != 0 {
		t.Fatalf("expected zero for unknown service, got %d", got)
	}
}
