package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentlaunch-dev/agentlaunch/internal/config"
	"github.com/agentlaunch-dev/agentlaunch/internal/version"
)

var statusOutputFormat string

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the deployment state recorded in the configuration file",
	Long:  `Displays the configured deployment target, the last recorded deployment, and the permission-grant state for each MCP resource.`,
	RunE:  runStatus,
}

func init() {
	StatusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "table", "Output format (table, json)")
}

type statusInfo struct {
	Version        string          `json:"version"`
	ConfigPath     string          `json:"config_path"`
	WebApp         string          `json:"web_app,omitempty"`
	ResourceGroup  string          `json:"resource_group,omitempty"`
	External       string          `json:"external_endpoint,omitempty"`
	LastDeployment *deploymentInfo `json:"last_deployment,omitempty"`
	Consents       []consentInfo   `json:"consents,omitempty"`
}

type deploymentInfo struct {
	ID         string `json:"id"`
	WebAppName string `json:"web_app_name"`
	Platform   string `json:"platform"`
	DeployedAt string `json:"deployed_at"`
	Succeeded  bool   `json:"succeeded"`
}

type consentInfo struct {
	Resource    string `json:"resource"`
	Granted     bool   `json:"granted"`
	Inheritable string `json:"inheritable"`
	Scopes      string `json:"scopes,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	store := config.NewStore(cfgPath)
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	info := statusInfo{
		Version:       version.Version,
		ConfigPath:    store.Path(),
		WebApp:        cfg.Static.WebAppName,
		ResourceGroup: cfg.Static.ResourceGroup,
		External:      cfg.Static.ExternalEndpoint,
	}
	if d := cfg.Dynamic.LastDeployment; d != nil {
		info.LastDeployment = &deploymentInfo{
			ID:         d.ID,
			WebAppName: d.WebAppName,
			Platform:   d.Platform,
			DeployedAt: d.DeployedAt.Format("2006-01-02 15:04:05 MST"),
			Succeeded:  d.Succeeded,
		}
	}
	for _, c := range cfg.Dynamic.Consents {
		info.Consents = append(info.Consents, consentInfo{
			Resource:    c.ResourceName,
			Granted:     c.Granted,
			Inheritable: string(c.Inheritable),
			Scopes:      strings.Join(c.Scopes, " "),
		})
	}

	if statusOutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	// Table output
	fmt.Printf("alctl version:   %s\n", info.Version)
	fmt.Printf("Config file:     %s\n", info.ConfigPath)
	if info.External != "" {
		fmt.Printf("Hosting:         external (%s)\n", info.External)
	} else {
		fmt.Printf("Web app:         %s\n", info.WebApp)
		fmt.Printf("Resource group:  %s\n", info.ResourceGroup)
	}
	if d := info.LastDeployment; d != nil {
		outcome := "failed"
		if d.Succeeded {
			outcome = "succeeded"
		}
		fmt.Printf("Last deploy:     %s (%s, %s, %s)\n", d.ID, d.Platform, d.DeployedAt, outcome)
	} else {
		fmt.Printf("Last deploy:     none\n")
	}
	for _, c := range info.Consents {
		granted := "pending"
		if c.Granted {
			granted = "granted"
		}
		fmt.Printf("Consent:         %s  %s  inheritable=%s  scopes=%s\n", c.Resource, granted, c.Inheritable, c.Scopes)
	}

	return nil
}
