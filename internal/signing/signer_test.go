package signing

import (
	"net/http"
	"strings"
	"testing"
)

func TestSignAddsSigV4Authorization(t *testing.T) {
	s := New(Config{
		Enabled:   true,
		AccessKey: "edge-access",
		SecretKey: "edge-secret",
		Region:    "eu-west-1",
	})

	req, err := http.NewRequest(http.MethodGet, "http://localhost:9000/pixelgate-variants/img/cat.png/format%3Dwebp", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	signed := s.Sign(req)
	auth := signed.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256") {
		t.Fatalf("expected SigV4 authorization header, got %q", auth)
	}
	if !strings.Contains(auth, "eu-west-1") {
		t.Fatalf("expected region in credential scope, got %q", auth)
	}
	if signed.Header.Get("X-Amz-Content-Sha256") != emptyPayloadSHA256 {
		t.Fatal("expected empty payload content hash header")
	}
}

func TestSignSkipsFailoverRequests(t *testing.T) {
	s := New(Config{Enabled: true, AccessKey: "edge-access", SecretKey: "edge-secret"})

	req, err := http.NewRequest(http.MethodGet, "http://failover.local/img/cat.png/format%3Djpeg", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set(HeaderOriginFailover, "edge")

	signed := s.Sign(req)
	if signed.Header.Get("Authorization") != "" {
		t.Fatal("expected failover request to stay unsigned")
	}
}

func TestSignDisabledLeavesRequestUntouched(t *testing.T) {
	s := New(Config{Enabled: false, AccessKey: "a", SecretKey: "b"})

	req, err := http.NewRequest(http.MethodGet, "http://origin.local/img/cat.png", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	signed := s.Sign(req)
	if signed.Header.Get("Authorization") != "" {
		t.Fatal("expected no authorization header")
	}
	if s.Enabled() {
		t.Fatal("expected signer to report disabled")
	}

	var nilSigner *Signer
	if nilSigner.Enabled() {
		t.Fatal("expected nil signer to report disabled")
	}
}
