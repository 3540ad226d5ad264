// Package auth signs users in against the Identity Toolkit REST API and
// decides whether a session may reach recipe data. Password accounts must
// confirm their email first; Google accounts arrive pre-verified.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

const identityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

// ErrNotVerified is returned when a session fails the verification gate.
var ErrNotVerified = fmt.Errorf("email not verified")

// Error is a sign-in failure with a message fit for showing to the user.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Session is an authenticated user.
type Session struct {
	UID           string
	Email         string
	IDToken       string
	RefreshToken  string
	EmailVerified bool
	Providers     []string
}

// Verified reports whether the session may access recipe data. A
// confirmed email suffices, and Google sign-ins count as verified even
// when the provider never set the email flag.
func (s *Session) Verified() bool {
	if s.EmailVerified {
		return true
	}
	for _, p := range s.Providers {
		if p == "google.com" {
			return true
		}
	}
	return false
}

// Client talks to the Identity Toolkit REST API.
type Client struct {
	http   *resty.Client
	apiKey string
}

// NewClient creates a Client for the given Firebase web API key.
func NewClient(apiKey string) *Client {
	return &Client{
		http:   resty.New().SetBaseURL(identityToolkitURL),
		apiKey: apiKey,
	}
}

type tokenResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignIn authenticates an email/password account and loads its
// verification state.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var tok tokenResponse
	if err := c.post(ctx, "/accounts:signInWithPassword", body, &tok); err != nil {
		return nil, err
	}
	session := &Session{
		UID:          tok.LocalID,
		Email:        tok.Email,
		IDToken:      tok.IDToken,
		RefreshToken: tok.RefreshToken,
	}
	return c.Reload(ctx, session)
}

// SignUp registers a new email/password account and sends the
// verification email. The returned session is unverified until the user
// follows the link.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	var tok tokenResponse
	if err := c.post(ctx, "/accounts:signUp", body, &tok); err != nil {
		return nil, err
	}
	if err := c.SendVerificationEmail(ctx, tok.IDToken); err != nil {
		return nil, err
	}
	return &Session{
		UID:          tok.LocalID,
		Email:        tok.Email,
		IDToken:      tok.IDToken,
		RefreshToken: tok.RefreshToken,
		Providers:    []string{"password"},
	}, nil
}

// SendVerificationEmail asks the backend to mail a confirmation link.
func (c *Client) SendVerificationEmail(ctx context.Context, idToken string) error {
	body := map[string]interface{}{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}
	return c.post(ctx, "/accounts:sendOobCode", body, nil)
}

// Reload refreshes the session's profile, picking up a verification the
// user completed since sign-in.
func (c *Client) Reload(ctx context.Context, s *Session) (*Session, error) {
	body := map[string]interface{}{"idToken": s.IDToken}
	var result struct {
		Users []struct {
			LocalID          string `json:"localId"`
			Email            string `json:"email"`
			EmailVerified    bool   `json:"emailVerified"`
			ProviderUserInfo []struct {
				ProviderID string `json:"providerId"`
			} `json:"providerUserInfo"`
		} `json:"users"`
	}
	if err := c.post(ctx, "/accounts:lookup", body, &result); err != nil {
		return nil, err
	}
	if len(result.Users) == 0 {
		return nil, fmt.Errorf("account lookup returned no user")
	}
	u := result.Users[0]
	providers := make([]string, 0, len(u.ProviderUserInfo))
	for _, p := range u.ProviderUserInfo {
		providers = append(providers, p.ProviderID)
	}
	return &Session{
		UID:           u.LocalID,
		Email:         u.Email,
		IDToken:       s.IDToken,
		RefreshToken:  s.RefreshToken,
		EmailVerified: u.EmailVerified,
		Providers:     providers,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.apiKey).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("auth request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return apiError(resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse auth response: %w", err)
	}
	return nil
}

// apiError maps backend error codes to user-facing messages. Unknown
// codes pass through unchanged.
func apiError(body []byte) error {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	code := payload.Error.Message
	switch code {
	case "EMAIL_NOT_FOUND":
		return &Error{Code: code, Message: "No account found."}
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return &Error{Code: code, Message: "Incorrect password."}
	case "":
		return &Error{Code: "UNKNOWN", Message: "Authentication failed."}
	default:
		return &Error{Code: code, Message: code}
	}
}

// SessionFromIDToken builds a session from an externally obtained
// Firebase ID token, such as a Google sign-in completed in a browser.
// The claims are read without signature verification; the backend
// re-checks the token on every request anyway.
func SessionFromIDToken(idToken string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}

	s := &Session{IDToken: idToken}
	if uid, ok := claims["user_id"].(string); ok {
		s.UID = uid
	} else if sub, ok := claims["sub"].(string); ok {
		s.UID = sub
	}
	if email, ok := claims["email"].(string); ok {
		s.Email = email
	}
	if verified, ok := claims["email_verified"].(bool); ok {
		s.EmailVerified = verified
	}
	if fb, ok := claims["firebase"].(map[string]interface{}); ok {
		if provider, ok := fb["sign_in_provider"].(string); ok {
			s.Providers = append(s.Providers, provider)
		}
	}
	if s.UID == "" {
		return nil, fmt.Errorf("id token has no user id claim")
	}
	return s, nil
}
