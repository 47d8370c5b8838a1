package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// StaticConfig holds the fields that are fixed once the configuration is
// loaded for a command invocation. Environment variables override the
// file values at load time; nothing mutates them afterwards.
type StaticConfig struct {
	TenantID       string `yaml:"tenantId" env:"ALCTL_TENANT_ID"`
	SubscriptionID string `yaml:"subscriptionId" env:"ALCTL_SUBSCRIPTION_ID"`
	ResourceGroup  string `yaml:"resourceGroup" env:"ALCTL_RESOURCE_GROUP"`
	Location       string `yaml:"location" env:"ALCTL_LOCATION"`
	PlanName       string `yaml:"planName" env:"ALCTL_PLAN_NAME"`
	PlanSKU        string `yaml:"planSku,omitempty" env:"ALCTL_PLAN_SKU"`
	WebAppName     string `yaml:"webAppName" env:"ALCTL_WEB_APP_NAME"`

	// Identity names for the agent application.
	AgentIdentityName string `yaml:"agentIdentityName"`
	BlueprintName     string `yaml:"blueprintName"`

	ProjectPath string `yaml:"projectPath" env:"ALCTL_PROJECT_PATH"`

	// ExternalEndpoint declares an externally hosted messaging endpoint.
	// When set, no managed web app is deployed and the web-app fields
	// above are not required.
	ExternalEndpoint string `yaml:"externalEndpoint,omitempty" env:"ALCTL_EXTERNAL_ENDPOINT"`

	// SelfContained selects self-contained dotnet publish output.
	SelfContained bool `yaml:"selfContained,omitempty"`

	// ToolingManifestPath points at the manifest listing required MCP
	// servers and their scopes.
	ToolingManifestPath string `yaml:"toolingManifestPath,omitempty" env:"ALCTL_TOOLING_MANIFEST"`
}

// DynamicConfig holds the fields mutated during execution and persisted
// back afterwards. Entries are append/update-only.
type DynamicConfig struct {
	ManagedIdentityID string            `yaml:"managedIdentityId,omitempty"`
	BlueprintID       string            `yaml:"blueprintId,omitempty"`
	ClientSecret      string            `yaml:"clientSecret,omitempty"`
	BotID             string            `yaml:"botId,omitempty"`
	Consents          []ResourceConsent `yaml:"consents,omitempty"`
	LastDeployment    *DeploymentRecord `yaml:"lastDeployment,omitempty"`
}

// DeploymentRecord captures metadata about the most recent deployment.
type DeploymentRecord struct {
	ID          string    `yaml:"id"`
	WebAppName  string    `yaml:"webAppName"`
	Platform    string    `yaml:"platform"`
	ArchivePath string    `yaml:"archivePath"`
	DeployedAt  time.Time `yaml:"deployedAt"`
	Succeeded   bool      `yaml:"succeeded"`
}

// Configuration is the merged static+dynamic record driving a command
// invocation. It is read at pipeline start and saved back at defined
// checkpoints; callers must not run overlapping invocations against the
// same state file.
type Configuration struct {
	Static  StaticConfig  `yaml:"static"`
	Dynamic DynamicConfig `yaml:"dynamic"`
}

// ManagedDeployment reports whether the configuration requests a managed
// web-app deployment rather than an externally hosted endpoint.
func (c *Configuration) ManagedDeployment() bool {
	return c.Static.ExternalEndpoint == ""
}

// Validate checks the configuration before any provisioning or
// deployment step. It returns every problem found, not just the first.
func (c *Configuration) Validate() []error {
	var errs []error
	require := func(value, field string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		}
	}

	require(c.Static.TenantID, "tenantId")
	require(c.Static.SubscriptionID, "subscriptionId")
	require(c.Static.AgentIdentityName, "agentIdentityName")
	require(c.Static.BlueprintName, "blueprintName")

	if c.ManagedDeployment() {
		require(c.Static.ResourceGroup, "resourceGroup")
		require(c.Static.Location, "location")
		require(c.Static.PlanName, "planName")
		require(c.Static.WebAppName, "webAppName")
		require(c.Static.ProjectPath, "projectPath")
	} else {
		u, err := url.Parse(c.Static.ExternalEndpoint)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Errorf("externalEndpoint must be an https URL, got %q", c.Static.ExternalEndpoint))
		}
	}

	return errs
}

// ConsentFor returns the consent entry for a resource application id, or
// nil when none has been recorded yet.
func (c *Configuration) ConsentFor(resourceAppID string) *ResourceConsent {
	for i := range c.Dynamic.Consents {
		if c.Dynamic.Consents[i].ResourceAppID == resourceAppID {
			return &c.Dynamic.Consents[i]
		}
	}
	return nil
}

// UpsertConsent updates the consent entry for consent.ResourceAppID in
// place, appending a new entry when none exists. Entries are never
// deleted so re-runs stay observable.
func (c *Configuration) UpsertConsent(consent ResourceConsent) *ResourceConsent {
	if existing := c.ConsentFor(consent.ResourceAppID); existing != nil {
		*existing = consent
		return existing
	}
	c.Dynamic.Consents = append(c.Dynamic.Consents, consent)
	return &c.Dynamic.Consents[len(c.Dynamic.Consents)-1]
}
