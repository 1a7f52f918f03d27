package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the ident service. It covers the public
// endpoints and creates Sessions for the ones that need a platform token.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a client for the service at baseURL.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// noRedirect returns an http.Client that reports redirects instead of
// following them, which the authorize endpoint needs.
func (c *SDKClient) noRedirect() *http.Client {
	cl := *c.HTTPClient
	cl.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cl
}

// ClientCredentials authenticates an OAuth2 client at the token and
// revocation endpoints. Secret is empty for public clients. With Basic set the
// credentials travel in the Authorization header instead of the form.
type ClientCredentials struct {
	ID     string
	Secret string
	Basic  bool
}
