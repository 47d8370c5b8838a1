package models

import "time"

// InheritableStatus is the tri-state record of whether inheritable
// permissions were configured on the blueprint for a resource.
type InheritableStatus string

const (
	// InheritableNotRequested means the run never reached the
	// inheritable-permission step for this resource.
	InheritableNotRequested InheritableStatus = "notRequested"
	InheritableConfigured   InheritableStatus = "configured"
	InheritableFailed       InheritableStatus = "failed"
)

// ResourceConsent records the grant state for one MCP resource
// application. Entries live in an ordered list inside the dynamic
// configuration, are looked up by ResourceAppID, and are never deleted.
type ResourceConsent struct {
	ResourceName  string   `yaml:"resourceName"`
	ResourceAppID string   `yaml:"resourceAppId"`
	ConsentURL    string   `yaml:"consentUrl,omitempty"`
	Granted       bool     `yaml:"granted"`
	GrantedAt     *time.Time `yaml:"grantedAt,omitempty"`
	Scopes        []string `yaml:"scopes,omitempty"`

	Inheritable      InheritableStatus `yaml:"inheritable"`
	InheritableError string            `yaml:"inheritableError,omitempty"`

	// InheritablePreExisted records that the permission set was already
	// in place when the run reached the inheritable step, so reruns are
	// observable from the state file.
	InheritablePreExisted bool `yaml:"inheritablePreExisted,omitempty"`
}
