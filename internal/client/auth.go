package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// TokenResponse is returned by the login endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the identity behind a token.
type User struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Login exchanges credentials for an access token and keeps it for later
// calls. Bad credentials yield ErrUnauthenticated.
func (c *Client) Login(ctx context.Context, username, password string) (TokenResponse, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok TokenResponse
	if err := c.send(req, &tok); err != nil {
		return TokenResponse{}, err
	}
	c.SetToken(tok.AccessToken)
	return tok, nil
}

// Verify returns the user the current token belongs to.
func (c *Client) Verify(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, http.MethodGet, "/api/auth/verify", nil, &u, true)
	return u, err
}

// Logout notifies the backend and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, true)
	c.SetToken("")
	return err
}
