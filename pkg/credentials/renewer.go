package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Renewer exchanges a refresh secret for a new session token.
type Renewer interface {
	Renew(ctx context.Context, refreshSecret string) (string, error)
}

// HTTPRenewer calls the renewal endpoint over HTTP. The endpoint historically
// replied in three shapes, all of which must be accepted: a bare string body,
// a JSON object with an "accessToken" field, or one with a "token" field.
type HTTPRenewer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPRenewer creates a renewer for the given endpoint with a default
// 15 second request timeout.
func NewHTTPRenewer(endpoint string) *HTTPRenewer {
	return &HTTPRenewer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type renewRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type renewReply struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

// Renew posts the refresh secret and extracts the new session token from any
// of the accepted reply shapes. A definitive rejection (401/403) returns
// ErrRenewalRejected so the caller can discard the refresh secret.
func (r *HTTPRenewer) Renew(ctx context.Context, refreshSecret string) (string, error) {
	body, err := json.Marshal(renewRequest{RefreshToken: refreshSecret})
	if err != nil {
		return "", fmt.Errorf("credentials: encode renewal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("credentials: build renewal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Join(ErrRenewalFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Join(ErrRenewalFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", ErrRenewalRejected
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: unexpected status %d", ErrRenewalFailed, resp.StatusCode)
	}

	token, err := extractToken(raw)
	if err != nil {
		return "", err
	}
	return token, nil
}

// extractToken tolerates every reply shape the renewal endpoint has been
// observed to produce.
func extractToken(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("%w: empty renewal reply", ErrRenewalFailed)
	}

	if trimmed[0] == '{' {
		var reply renewReply
		if err := json.Unmarshal(trimmed, &reply); err != nil {
			return "", fmt.Errorf("%w: malformed renewal reply: %v", ErrRenewalFailed, err)
		}
		switch {
		case reply.AccessToken != "":
			return reply.AccessToken, nil
		case reply.Token != "":
			return reply.Token, nil
		default:
			return "", fmt.Errorf("%w: renewal reply carries no token", ErrRenewalFailed)
		}
	}

	// A JSON string or a bare string body; either way the whole body is the token.
	var quoted string
	if err := json.Unmarshal(trimmed, &quoted); err == nil {
		return quoted, nil
	}
	return strings.TrimSpace(string(trimmed)), nil
}
