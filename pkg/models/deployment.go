package models

// DeploymentConfiguration is the per-invocation deployment request. It
// is created from CLI flags plus the static configuration and discarded
// when the command finishes; it is never persisted.
type DeploymentConfiguration struct {
	ResourceGroup     string
	AppName           string
	ProjectPath       string
	ArchiveName       string
	PublishOutputPath string

	// PlatformOverride skips detection when set to anything other than
	// PlatformUnknown.
	PlatformOverride Platform

	// SelfContained selects self-contained dotnet publish output.
	SelfContained bool

	// Restart reuses the existing publish output instead of rebuilding.
	Restart bool
	// Inspect pauses after packaging, before upload.
	Inspect bool
	// DryRun prints the planned steps without executing any subprocess.
	DryRun bool
}

// HostingManifest is the Oryx-style declarative file telling the hosting
// runtime how to start (and optionally build) the application. It is
// generated once per deployment cycle and only ever written, never read
// back.
type HostingManifest struct {
	Platform        string `yaml:"platform"`
	PlatformVersion string `yaml:"platformVersion,omitempty"`
	RunCommand      string `yaml:"run"`
	BuildCommand    string `yaml:"build,omitempty"`
	BuildRequired   bool   `yaml:"buildRequired"`
}
