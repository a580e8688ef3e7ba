package gateway

import (
	"context"
	"errors"
	"net/url"
)

// AuthResult is the backend's answer to login and signup.
type AuthResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	UserName    string `json:"user_name"`
	UserTier    string `json:"user_tier"`
}

// Login posts OAuth2 password-form credentials; the backend reads the email
// from the "username" field. Any non-2xx answer is ErrAuth.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "login"
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var out AuthResult
	if err := c.postForm(Anonymous(ctx), op, "/api/auth/login", form, &out); err != nil {
		return nil, asAuthError(err)
	}
	if out.AccessToken == "" {
		return nil, &Error{Op: op, Kind: ErrAuth, ServerMessage: "no access token in response"}
	}
	return &out, nil
}

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (c *Client) Signup(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	const op = "signup"
	var out AuthResult
	err := c.postJSON(Anonymous(ctx), op, "/api/auth/signup", signupReq{
		Email:    email,
		Password: password,
		FullName: fullName,
	}, &out)
	if err != nil {
		return nil, asAuthError(err)
	}
	if out.AccessToken == "" {
		return nil, &Error{Op: op, Kind: ErrAuth, ServerMessage: "no access token in response"}
	}
	return &out, nil
}

// asAuthError reclassifies backend rejections of credentials. Transport
// failures stay ErrNetwork.
func asAuthError(err error) error {
	var ge *Error
	if errors.As(err, &ge) && ge.StatusCode != 0 && ge.Kind != ErrAuth {
		cp := *ge
		cp.Kind = ErrAuth
		return &cp
	}
	return err
}
