// Package authz implements the Authorization interface the command
// pipeline consumes (spec §6.2): check_permission(ctx, subject, resource,
// action, scope) -> ok|denied. Adapted from the teacher's
// internal/shared/policy/opa.go OPA HTTP client, generalized from
// case/document-shaped inputs to the generic (subject, resource, action,
// scope) tuple and fail-closed on OPA unavailability exactly as before.
package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Input is the OPA policy-evaluation input for one permission check.
type Input struct {
	Subject  string `json:"subject"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    string `json:"scope"` // usually instance_id or org_id
}

// Decision is OPA's response shape.
type Decision struct {
	Allow   bool     `json:"allow"`
	Reasons []string `json:"reasons,omitempty"`
}

// Checker is the Authorization interface consumed by internal/command.
type Checker interface {
	CheckPermission(ctx context.Context, in Input) (bool, error)
}

// OPAChecker evaluates permissions against an OPA sidecar/service.
type OPAChecker struct {
	baseURL    string
	policy     string
	httpClient *http.Client
	enabled    bool
}

// NewOPAChecker constructs a Checker. When enabled is false, every check
// is allowed (used for local development); when enabled and OPA is
// unreachable or returns a non-200, the check fails closed (denied) —
// the command pipeline never silently grants access because a
// dependency is down.
func NewOPAChecker(baseURL, policy string, enabled bool) *OPAChecker {
	return &OPAChecker{
		baseURL:    baseURL,
		policy:     policy,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		enabled:    enabled,
	}
}

func (c *OPAChecker) CheckPermission(ctx context.Context, in Input) (bool, error) {
	if !c.enabled {
		return true, nil
	}

	body, err := json.Marshal(map[string]any{"input": in})
	if err != nil {
		return false, fmt.Errorf("marshal authz input: %w", err)
	}

	url := fmt.Sprintf("%s/v1/data/%s", c.baseURL, c.policy)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build authz request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Policy engine unreachable: fail closed.
		return false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var result struct {
		Result Decision `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode authz response: %w", err)
	}
	return result.Result.Allow, nil
}

func (c *OPAChecker) Health(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authz engine health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authz engine unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// AllowAll is a Checker that always permits — used in tests and in
// single-tenant developer setups with no policy engine configured.
type AllowAll struct{}

func (AllowAll) CheckPermission(ctx context.Context, in Input) (bool, error) { return true, nil }
