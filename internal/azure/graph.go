package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// IdentityDirectory is the identity-provider contract the permission
// sequencer consumes. All scope strings follow the directory wire
// format: space-separated scope values.
type IdentityDirectory interface {
	// ServicePrincipalByAppID resolves the service principal backing an
	// application id, or (nil, nil) when none exists in the tenant.
	ServicePrincipalByAppID(ctx context.Context, appID string) (*ServicePrincipal, error)

	// OAuth2Grants lists existing grants for a client/resource service
	// principal pair.
	OAuth2Grants(ctx context.Context, clientObjectID, resourceObjectID string) ([]OAuth2Grant, error)

	// CreateOAuth2Grant creates a new grant for the pair.
	CreateOAuth2Grant(ctx context.Context, grant OAuth2Grant) error

	// UpdateOAuth2GrantScope overwrites the scope set of an existing
	// grant.
	UpdateOAuth2GrantScope(ctx context.Context, grantID, scope string) error

	// ConfigureInheritablePermissions configures the blueprint
	// application so agent instances inherit the given scopes for the
	// resource application. It reports whether the configuration
	// already existed.
	ConfigureInheritablePermissions(ctx context.Context, blueprintAppID, resourceAppID string, scopes []string) (alreadyConfigured bool, err error)
}

const graphBase = "https://graph.microsoft.com/v1.0"

// NewIdentityDirectory returns the Graph-backed implementation.
func NewIdentityDirectory(rest RestClient) IdentityDirectory {
	return &graphDirectory{rest: rest}
}

// RestClient issues authenticated REST calls against the identity
// provider. The az CLI supplies one; tests supply a fake.
type RestClient interface {
	Do(ctx context.Context, method, url string, body any) ([]byte, error)
}

type graphDirectory struct {
	rest RestClient
}

type listResponse[T any] struct {
	Value []T `json:"value"`
}

func (g *graphDirectory) ServicePrincipalByAppID(ctx context.Context, appID string) (*ServicePrincipal, error) {
	url := fmt.Sprintf("%s/servicePrincipals?$filter=appId eq '%s'", graphBase, appID)
	data, err := g.rest.Do(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("service principal lookup for appId %s: %w", appID, err)
	}
	var resp listResponse[ServicePrincipal]
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unexpected service principal response: %w", err)
	}
	if len(resp.Value) == 0 {
		return nil, nil
	}
	return &resp.Value[0], nil
}

func (g *graphDirectory) OAuth2Grants(ctx context.Context, clientObjectID, resourceObjectID string) ([]OAuth2Grant, error) {
	url := fmt.Sprintf("%s/oauth2PermissionGrants?$filter=clientId eq '%s' and resourceId eq '%s'",
		graphBase, clientObjectID, resourceObjectID)
	data, err := g.rest.Do(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("grant lookup for client %s: %w", clientObjectID, err)
	}
	var resp listResponse[OAuth2Grant]
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("unexpected grant response: %w", err)
	}
	return resp.Value, nil
}

func (g *graphDirectory) CreateOAuth2Grant(ctx context.Context, grant OAuth2Grant) error {
	if grant.ConsentType == "" {
		grant.ConsentType = "AllPrincipals"
	}
	if _, err := g.rest.Do(ctx, "POST", graphBase+"/oauth2PermissionGrants", grant); err != nil {
		return fmt.Errorf("create grant for client %s: %w", grant.ClientID, err)
	}
	return nil
}

func (g *graphDirectory) UpdateOAuth2GrantScope(ctx context.Context, grantID, scope string) error {
	url := graphBase + "/oauth2PermissionGrants/" + grantID
	body := map[string]string{"scope": scope}
	if _, err := g.rest.Do(ctx, "PATCH", url, body); err != nil {
		return fmt.Errorf("update grant %s: %w", grantID, err)
	}
	return nil
}

// inheritablePermissionSet mirrors the blueprint application's
// authorized-permission configuration for one resource application.
type inheritablePermissionSet struct {
	ResourceAppID string   `json:"resourceAppId"`
	Scopes        []string `json:"scopes"`
}

func (g *graphDirectory) ConfigureInheritablePermissions(ctx context.Context, blueprintAppID, resourceAppID string, scopes []string) (bool, error) {
	url := fmt.Sprintf("%s/applications(appId='%s')/authorizedPermissions", graphBase, blueprintAppID)
	data, err := g.rest.Do(ctx, "GET", url, nil)
	if err != nil {
		return false, fmt.Errorf("inheritable permission lookup for blueprint %s: %w", blueprintAppID, err)
	}

	var resp listResponse[inheritablePermissionSet]
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("unexpected inheritable permission response: %w", err)
	}
	for _, existing := range resp.Value {
		if existing.ResourceAppID == resourceAppID && scopeSetEqual(existing.Scopes, scopes) {
			return true, nil
		}
	}

	body := inheritablePermissionSet{ResourceAppID: resourceAppID, Scopes: scopes}
	if _, err := g.rest.Do(ctx, "PATCH", url, body); err != nil {
		return false, fmt.Errorf("configure inheritable permissions for blueprint %s: %w", blueprintAppID, err)
	}
	return false, nil
}

func scopeSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[strings.ToLower(s)]; !ok {
			return false
		}
	}
	return true
}
