package edge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/pixelgate/internal/signing"
)

func TestFetchOriginReturnsPrimary(t *testing.T) {
	var gotPath, gotAccept string
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write([]byte("primary-bytes"))
	}))
	defer primary.Close()

	failoverHits := 0
	failover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failoverHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer failover.Close()

	client := newTestOriginClient(t, primary.URL, failover.URL, nil)

	forward := http.Header{}
	forward.Set("Accept", "image/avif,image/webp")
	resp, origin, err := client.FetchOrigin(context.Background(), "/img/cat.png/format%3Dwebp%2Cwidth%3D640", forward)
	if err != nil {
		t.Fatalf("fetch origin: %v", err)
	}
	defer resp.Body.Close()

	if origin != OriginPrimary {
		t.Fatalf("expected primary origin, got %s", origin)
	}
	if gotPath != "/img/cat.png/format%3Dwebp%2Cwidth%3D640" {
		t.Fatalf("expected escaped path preserved, got %s", gotPath)
	}
	if gotAccept != "image/avif,image/webp" {
		t.Fatalf("expected accept header forwarded, got %q", gotAccept)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "primary-bytes" {
		t.Fatalf("unexpected body: %s", body)
	}
	if failoverHits != 0 {
		t.Fatalf("expected no failover traffic, got %d hits", failoverHits)
	}
}

func TestFetchOriginFailsOverAfterRetries(t *testing.T) {
	primaryHits := 0
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		primaryHits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer primary.Close()

	var failoverMarker, failoverAuth string
	failover := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		failoverMarker = r.Header.Get(signing.HeaderOriginFailover)
		failoverAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("failover-bytes"))
	}))
	defer failover.Close()

	signer := signing.New(signing.Config{
		Enabled:   true,
		AccessKey: "pixelgate-access",
		SecretKey: "pixelgate-secret",
		Region:    "us-east-1",
	})
	client := newTestOriginClient(t, primary.URL, failover.URL, signer)

	resp, origin, err := client.FetchOrigin(context.Background(), "/img/cat.png/format%3Djpeg", http.Header{})
	if err != nil {
		t.Fatalf("fetch origin: %v", err)
	}
	defer resp.Body.Close()

	if origin != OriginFailover {
		t.Fatalf("expected failover origin, got %s", origin)
	}
	if primaryHits != 2 {
		t.Fatalf("expected 2 primary attempts, got %d", primaryHits)
	}
	if failoverMarker != "1" {
		t.Fatalf("expected failover marker header, got %q", failoverMarker)
	}
	if failoverAuth != "" {
		t.Fatalf("expected unsigned failover request, got %q", failoverAuth)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "failover-bytes" {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestFetchOriginDoesNotRetryClientErrors(t *testing.T) {
	primaryHits := 0
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		primaryHits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer primary.Close()

	client := newTestOriginClient(t, primary.URL, "", nil)

	resp, origin, err := client.FetchOrigin(context.Background(), "/img/gone.png/format%3Djpeg", http.Header{})
	if err != nil {
		t.Fatalf("fetch origin: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 passthrough, got %d", resp.StatusCode)
	}
	if origin != OriginPrimary {
		t.Fatalf("expected primary origin, got %s", origin)
	}
	if primaryHits != 1 {
		t.Fatalf("expected single attempt for 404, got %d", primaryHits)
	}
}

func TestFetchOriginFailsWithoutFailover(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer primary.Close()

	client := newTestOriginClient(t, primary.URL, "", nil)

	_, _, err := client.FetchOrigin(context.Background(), "/img/cat.png/format%3Djpeg", http.Header{})
	if err == nil {
		t.Fatal("expected error after exhausting primary attempts")
	}
	if !strings.Contains(err.Error(), "status=502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestFetchVariantSignsAndEscapesKey(t *testing.T) {
	var gotPath, gotAuth string
	variants := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("variant-bytes"))
	}))
	defer variants.Close()

	signer := signing.New(signing.Config{
		Enabled:   true,
		AccessKey: "pixelgate-access",
		SecretKey: "pixelgate-secret",
		Region:    "us-east-1",
	})
	client, err := NewOriginClient(OriginClientConfig{
		OriginURL:   "http://origin.invalid",
		VariantsURL: variants.URL + "/pixelgate-variants",
	}, signer)
	if err != nil {
		t.Fatalf("new origin client: %v", err)
	}

	resp, err := client.FetchVariant(context.Background(), "img/My Cat.png/format=webp,width=640")
	if err != nil {
		t.Fatalf("fetch variant: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotPath != "/pixelgate-variants/img/My%20Cat.png/format=webp%2Cwidth=640" {
		t.Fatalf("unexpected variant path: %s", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256") {
		t.Fatalf("expected SigV4 authorization, got %q", gotAuth)
	}
}

func newTestOriginClient(t *testing.T, originURL, failoverURL string, signer requestSigner) *OriginClient {
	t.Helper()

	client, err := NewOriginClient(OriginClientConfig{
		OriginURL:      originURL,
		FailoverURL:    failoverURL,
		VariantsURL:    "http://variants.invalid",
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}, signer)
	if err != nil {
		t.Fatalf("new origin client: %v", err)
	}
	return client
}
