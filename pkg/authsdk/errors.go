package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/ident/pkg/httpx"
)

// OAuth2 error codes (RFC 6749, RFC 6750, RFC 7009).
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeServerError             = "server_error"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
)

// Error kinds returned by the /v1 API.
const (
	ErrorCodeValidation            = "validation"
	ErrorCodeNotAuthenticated      = "not_authenticated"
	ErrorCodeEntityNotFound        = "entity_not_found"
	ErrorCodeEntityLocked          = "entity_locked"
	ErrorCodePreconditionViolation = "precondition_violation"
	ErrorCodeForbiddenAccess       = "forbidden_access"
	ErrorCodeUnexpected            = "unexpected"
)

// DataMfaToken is the Data key of the token that continues an MFA-gated login.
const DataMfaToken = "mfa_token"

// OAuth2Error is an error body written by the server and decoded by the
// client. Both the OAuth2 endpoints and the /v1 API use this shape.
type OAuth2Error struct {
	StatusCode  int               `json:"-"`
	Code        string            `json:"error"`
	Description string            `json:"error_description,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON response. invalid_client at 401 carries a
// Basic challenge.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	if e.StatusCode == http.StatusUnauthorized && e.Code == ErrorCodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="ident"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		Data:             e.Data,
	})
}

// WithDescription returns a copy of e with a different description.
func (e *OAuth2Error) WithDescription(desc string) *OAuth2Error {
	out := *e
	out.Description = desc
	return &out
}

// Is compares codes only, so errors.Is(err, ErrInvalidGrant) holds whatever
// the description says.
func (e *OAuth2Error) Is(target error) bool {
	var t *OAuth2Error
	return errors.As(target, &t) && e.Code == t.Code
}

// NewOAuth2Error creates an error with the given status, code and description.
func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidRequest          = NewOAuth2Error(http.StatusBadRequest, ErrorCodeInvalidRequest, "the request is malformed or missing required parameters")
	ErrInvalidClient           = NewOAuth2Error(http.StatusUnauthorized, ErrorCodeInvalidClient, "invalid client")
	ErrInvalidGrant            = NewOAuth2Error(http.StatusBadRequest, ErrorCodeInvalidGrant, "invalid grant")
	ErrUnsupportedGrantType    = NewOAuth2Error(http.StatusBadRequest, ErrorCodeUnsupportedGrantType, "grant type not supported")
	ErrInvalidScope            = NewOAuth2Error(http.StatusBadRequest, ErrorCodeInvalidScope, "requested scope is invalid")
	ErrServerError             = NewOAuth2Error(http.StatusInternalServerError, ErrorCodeServerError, "internal server error")
	ErrAccessDenied            = NewOAuth2Error(http.StatusForbidden, ErrorCodeAccessDenied, "access denied")
	ErrUnsupportedResponseType = NewOAuth2Error(http.StatusBadRequest, ErrorCodeUnsupportedResponseType, "response type not supported")

	// Token and revoke endpoints only take form bodies.
	ErrInvalidContentType = NewOAuth2Error(http.StatusBadRequest, ErrorCodeInvalidRequest, "content-type must be application/x-www-form-urlencoded")
	ErrInvalidFormBody    = NewOAuth2Error(http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid form body")
)

// MfaToken extracts the mfa_token from an error returned by Authenticate. The
// second result is false when err is not an MFA-required failure.
func MfaToken(err error) (string, bool) {
	var oe *OAuth2Error
	if !errors.As(err, &oe) {
		return "", false
	}
	tok, ok := oe.Data[DataMfaToken]
	return tok, ok && tok != ""
}

// parseErrorResponse turns a non-2xx response into an *OAuth2Error. Bodies
// that are not error JSON become server_error with the status text.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			Data:        errResp.Data,
		}
	}
	return NewOAuth2Error(resp.StatusCode, ErrorCodeServerError,
		fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}
