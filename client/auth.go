package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrMissingToken 没有可用的登录凭证
	ErrMissingToken = errors.New("no authentication token found")
	// ErrInvalidToken 身份服务拒绝了凭证
	ErrInvalidToken = errors.New("invalid token")
)

// Identity 启动时确认的本地身份
type Identity struct {
	Username string
	Token    string
}

type verifyResponse struct {
	Username string `json:"username"`
}

// Verifier 向身份服务确认 bearer token
type Verifier struct {
	URL    string
	Client *http.Client
}

func NewVerifier(url string) *Verifier {
	return &Verifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Verify 只在启动时调用一次；失败对本核心是致命的
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.Client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Identity{}, fmt.Errorf("%w: status %d", ErrInvalidToken, resp.StatusCode)
	}
	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if body.Username == "" {
		return Identity{}, fmt.Errorf("%w: empty username", ErrInvalidToken)
	}
	return Identity{Username: body.Username, Token: token}, nil
}
