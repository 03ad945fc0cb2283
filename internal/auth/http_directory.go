package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type userResponse struct {
	ID      string `json:"id"`
	Sandbox []struct {
		ID string `json:"id"`
	} `json:"sandbox"`
	UsersToSandboxes []struct {
		SandboxID string `json:"sandboxId"`
	} `json:"usersToSandboxes"`
}

// HTTPDirectory asks a remote account service for memberships:
// GET <base>/api/user?id=<userID>.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
	token   string
}

var _ Directory = (*HTTPDirectory)(nil)

func NewHTTPDirectory(baseURL, token string, timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		token:   token,
	}
}

func (d *HTTPDirectory) ResolveUser(ctx context.Context, userID string) (Membership, error) {
	endpoint := d.baseURL + "/api/user?id=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Membership{}, fmt.Errorf("build directory request: %w", err)
	}
	if d.token != "" {
		req.Header.Set("Authorization", "Bearer "+d.token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Membership{}, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Membership{}, ErrUnknownUser
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Membership{}, fmt.Errorf("directory returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var body *userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Membership{}, fmt.Errorf("decode directory response: %w", err)
	}
	if body == nil || body.ID == "" {
		return Membership{}, ErrUnknownUser
	}

	var m Membership
	for _, s := range body.Sandbox {
		m.OwnedWorkspaces = append(m.OwnedWorkspaces, s.ID)
	}
	for _, s := range body.UsersToSandboxes {
		m.SharedWorkspaces = append(m.SharedWorkspaces, s.SandboxID)
	}
	return m, nil
}
