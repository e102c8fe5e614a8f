// Package googleid verifies Google ID tokens and resolves them to a
// stable (subject, email) identity.
package googleid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultEndpoint = "https://oauth2.googleapis.com/tokeninfo"

// Identity is the provider-stable subject for a verified credential.
type Identity struct {
	Sub   string
	Email string
}

var ErrInvalidCredential = errors.New("invalid google credential")

// Verifier validates raw ID tokens against Google's tokeninfo endpoint.
type Verifier struct {
	clientID string
	endpoint string
	client   *http.Client
}

func NewVerifier(clientID string) *Verifier {
	return NewVerifierWithEndpoint(clientID, defaultEndpoint)
}

// NewVerifierWithEndpoint allows tests to point at a fake provider.
func NewVerifierWithEndpoint(clientID, endpoint string) *Verifier {
	return &Verifier{
		clientID: clientID,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *Verifier) Verify(ctx context.Context, rawToken string) (Identity, error) {
	if rawToken == "" {
		return Identity{}, ErrInvalidCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint+"?id_token="+url.QueryEscape(rawToken), nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build tokeninfo request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("call tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	// Google answers 4xx for anything it cannot verify
	if resp.StatusCode != http.StatusOK {
		return Identity{}, ErrInvalidCredential
	}

	var info struct {
		Aud   string `json:"aud"`
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Exp   string `json:"exp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, ErrInvalidCredential
	}

	if info.Aud != v.clientID {
		return Identity{}, ErrInvalidCredential
	}
	if exp, err := strconv.ParseInt(info.Exp, 10, 64); err != nil || time.Now().Unix() >= exp {
		return Identity{}, ErrInvalidCredential
	}
	if info.Sub == "" || info.Email == "" {
		return Identity{}, ErrInvalidCredential
	}

	return Identity{Sub: info.Sub, Email: info.Email}, nil
}
