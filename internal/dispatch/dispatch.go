package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appLog "resvwatch/internal/log"
)

const (
	DefaultBaseURL   = "https://api.github.com"
	DefaultRef       = "main"
	defaultUserAgent = "resvwatch-dispatch"
)

// Client triggers a GitHub Actions workflow_dispatch event. It is the
// external scheduler for deployments that run resvwatch as a workflow.
type Client struct {
	Token    string
	Owner    string
	Repo     string
	Workflow string // workflow file name or id, e.g. "watch.yml"
	Ref      string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	HTTP    *http.Client
}

// Dispatch fires the workflow once. GitHub answers 204 on success; any
// non-2xx is returned as an error carrying the response body.
func (c *Client) Dispatch(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	ref := c.Ref
	if ref == "" {
		ref = DefaultRef
	}

	endpoint := strings.TrimRight(base, "/") + "/repos/" +
		url.PathEscape(c.Owner) + "/" + url.PathEscape(c.Repo) +
		"/actions/workflows/" + url.PathEscape(c.Workflow) + "/dispatches"

	body, err := json.Marshal(map[string]string{"ref": ref})
	if err != nil {
		return fmt.Errorf("dispatch: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", defaultUserAgent)

	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("dispatch: github returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	appLog.Info("workflow dispatch sent", "repo", c.Owner+"/"+c.Repo, "workflow", c.Workflow, "ref", ref)
	return nil
}

func (c *Client) validate() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if c.Workflow == "" {
		missing = append(missing, "workflow")
	}
	if len(missing) > 0 {
		return errors.New("dispatch: missing " + strings.Join(missing, ", "))
	}
	return nil
}
