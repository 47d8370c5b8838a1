package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/internal/auth"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

const graphScope = "https://graph.microsoft.com/.default"

// NewRestClient returns the Graph REST client. Requests carry a bearer
// token acquired through the cache; the token factory delegates to the
// az CLI, which holds the credential, so this process never sees raw
// secrets beyond the short-lived access token.
func NewRestClient(tenant string, cache *auth.Cache, logger *zap.Logger) RestClient {
	return &graphRestClient{
		http:   &http.Client{Timeout: 60 * time.Second},
		cache:  cache,
		tenant: tenant,
		logger: logger,
	}
}

type graphRestClient struct {
	http   *http.Client
	cache  *auth.Cache
	tenant string
	logger *zap.Logger
}

func (c *graphRestClient) Do(ctx context.Context, method, url string, body any) ([]byte, error) {
	key := auth.NewKey(c.tenant, "", []string{graphScope})
	token, err := c.cache.GetOrAcquire(ctx, key, c.acquireToken)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindAuthentication, "azure.rest",
			"cannot acquire an access token", err).
			WithMitigation("run `az login --tenant " + c.tenant + "` and retry")
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cannot encode request body: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.logger.Debug("graph request", zap.String("method", method), zap.String("url", url))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", method, url, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errdefs.New(errdefs.KindAuthentication, "azure.rest",
			fmt.Sprintf("%s %s returned %s", method, url, resp.Status)).
			WithContext("body", string(data)).
			WithMitigation("re-authenticate with `az login` using an account that can manage application permissions")
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// acquireToken shells out to the az CLI for a Graph access token. The
// cache's per-key lock serializes concurrent callers, so at most one az
// invocation runs per (tenant, scope) pair.
func (c *graphRestClient) acquireToken(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "az", "account", "get-access-token",
		"--scope", graphScope, "--tenant", c.tenant, "--output", "json")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("az account get-access-token: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	var result struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return "", fmt.Errorf("cannot decode az token output: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("az returned an empty access token")
	}
	return result.AccessToken, nil
}
