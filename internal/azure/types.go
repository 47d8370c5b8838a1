// Package azure defines the contracts this CLI consumes from the cloud
// resource manager and the identity directory, plus the az-CLI-backed
// implementations of both.
package azure

// ResourceGroupSpec describes a resource group to create or verify.
type ResourceGroupSpec struct {
	Name     string
	Location string
}

// PlanSpec describes an app service plan.
type PlanSpec struct {
	Name          string
	ResourceGroup string
	Location      string
	SKU           string
}

// WebAppSpec describes a web app bound to a plan.
type WebAppSpec struct {
	Name          string
	ResourceGroup string
	PlanName      string
	Runtime       string // e.g. "NODE|20-lts"
}

// ManagedIdentitySpec describes a user-assigned managed identity.
type ManagedIdentitySpec struct {
	Name          string
	ResourceGroup string
	Location      string
}

// Resource is the slim view of a provisioned cloud resource.
type Resource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`

	// PrincipalID is set for managed identities.
	PrincipalID string `json:"principalId,omitempty"`
	// ClientID is set for managed identities.
	ClientID string `json:"clientId,omitempty"`
}

// ServicePrincipal is the directory object grants are applied against.
type ServicePrincipal struct {
	ObjectID    string `json:"id"`
	AppID       string `json:"appId"`
	DisplayName string `json:"displayName,omitempty"`
}

// OAuth2Grant is a record authorizing one service principal to call
// another with a delegated scope set. Scope holds space-separated scope
// values, matching the directory wire format.
type OAuth2Grant struct {
	ID          string `json:"id,omitempty"`
	ClientID    string `json:"clientId"`    // object id of the client service principal
	ResourceID  string `json:"resourceId"`  // object id of the resource service principal
	ConsentType string `json:"consentType"` // "AllPrincipals" for admin consent
	Scope       string `json:"scope"`
}
