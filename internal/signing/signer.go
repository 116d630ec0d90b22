package signing

import (
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7/pkg/signer"
)

const (
	HeaderOriginFailover = "X-Pixelgate-Origin-Failover"

	contentSHA256Header = "X-Amz-Content-Sha256"
	emptyPayloadSHA256  = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

type Config struct {
	Enabled   bool
	AccessKey string
	SecretKey string
	Region    string
}

type Signer struct {
	enabled   bool
	accessKey string
	secretKey string
	region    string
}

func New(cfg Config) *Signer {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	return &Signer{
		enabled:   cfg.Enabled && cfg.AccessKey != "" && cfg.SecretKey != "",
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		region:    region,
	}
}

func (s *Signer) Enabled() bool {
	return s != nil && s.enabled
}

func (s *Signer) Sign(req *http.Request) *http.Request {
	if !s.Enabled() {
		return req
	}
	if req.Header.Get(HeaderOriginFailover) != "" {
		return req
	}

	req.Header.Set(contentSHA256Header, emptyPayloadSHA256)
	return signer.SignV4(*req, s.accessKey, s.secretKey, "", s.region)
}
