package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentlaunch-dev/agentlaunch/internal/auth"
	"github.com/agentlaunch-dev/agentlaunch/internal/azure"
	"github.com/agentlaunch-dev/agentlaunch/internal/build"
	"github.com/agentlaunch-dev/agentlaunch/internal/cli/common"
	"github.com/agentlaunch-dev/agentlaunch/internal/config"
	"github.com/agentlaunch-dev/agentlaunch/internal/logging"
	"github.com/agentlaunch-dev/agentlaunch/internal/packaging"
	"github.com/agentlaunch-dev/agentlaunch/internal/pipeline"
	"github.com/agentlaunch-dev/agentlaunch/internal/provision"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

var DeployCmd = &cobra.Command{
	Use:   "deploy [app|mcp]",
	Short: "Deploy the agent application or provision its tool permissions",
	Long: `Deploy drives the full pipeline for the configured project: platform
detection, build, packaging, cloud-resource provisioning, and archive upload.

The "mcp" target skips the build pipeline and runs the permission-grant
sequence for the MCP servers listed in the tooling manifest instead.

Example:
  alctl deploy app
  alctl deploy app --restart
  alctl deploy app --dry-run
  alctl deploy mcp --manifest tools.yaml`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runDeploy,
}

func init() {
	DeployCmd.Flags().Bool("restart", false, "Reuse the existing publish output instead of rebuilding")
	DeployCmd.Flags().Bool("inspect", false, "Pause after packaging so the artifact can be examined before upload")
	DeployCmd.Flags().Bool("dry-run", false, "Print the planned steps without executing anything")
	DeployCmd.Flags().String("platform", "", "Override platform detection (dotnet, nodejs, python)")
	DeployCmd.Flags().String("archive", "", "Deployment archive path (defaults to <app-name>.zip)")
	DeployCmd.Flags().String("publish-dir", "", "Publish output directory (defaults to <project>/publish)")
	DeployCmd.Flags().String("manifest", "", "Tooling manifest path for the mcp target")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	target := "app"
	if len(args) > 0 {
		target = args[0]
	}
	if target != "app" && target != "mcp" {
		return fmt.Errorf("unknown deploy target %q: expected app or mcp", target)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	cfgPath, _ := cmd.Flags().GetString("config")

	logger := logging.NewLogger("alctl", verbose)
	defer logger.Sync() //nolint:errcheck

	store := config.NewStore(cfgPath)
	cfg, err := store.Load()
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Params{
		Config:      cfg,
		Store:       store,
		Builder:     build.New(build.NewRunner(verbose), logger),
		Packager:    packaging.New(logger),
		Provisioner: provision.New(azure.NewResourceManager(cfg.Static.SubscriptionID, verbose, logger), logger),
		Directory: azure.NewIdentityDirectory(
			azure.NewRestClient(cfg.Static.TenantID, auth.NewCache(), logger)),
		Logger: logger,
		Stdin:  cmd.InOrStdin(),
	})

	switch target {
	case "app":
		dcfg, err := deploymentConfig(cmd, cfg)
		if err != nil {
			return err
		}
		return p.Deploy(cmd.Context(), dcfg)
	default:
		manifestPath, _ := cmd.Flags().GetString("manifest")
		return p.GrantPermissions(cmd.Context(), manifestPath)
	}
}

func deploymentConfig(cmd *cobra.Command, cfg *models.Configuration) (models.DeploymentConfiguration, error) {
	var dcfg models.DeploymentConfiguration

	if err := common.ValidateAppName(cfg.Static.WebAppName); err != nil {
		return dcfg, err
	}
	if err := common.ValidateProjectDir(cfg.Static.ProjectPath); err != nil {
		return dcfg, err
	}

	platformFlag, _ := cmd.Flags().GetString("platform")
	var override models.Platform
	if platformFlag != "" {
		parsed, err := models.ParsePlatform(platformFlag)
		if err != nil {
			return dcfg, err
		}
		override = parsed
	}

	archive, _ := cmd.Flags().GetString("archive")
	publishDir, _ := cmd.Flags().GetString("publish-dir")
	restart, _ := cmd.Flags().GetBool("restart")
	inspect, _ := cmd.Flags().GetBool("inspect")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	return models.DeploymentConfiguration{
		ResourceGroup:     cfg.Static.ResourceGroup,
		AppName:           cfg.Static.WebAppName,
		ProjectPath:       cfg.Static.ProjectPath,
		ArchiveName:       common.ResolveArchivePath(archive, cfg.Static.WebAppName),
		PublishOutputPath: common.ResolvePublishPath(publishDir, cfg.Static.ProjectPath),
		PlatformOverride:  override,
		SelfContained:     cfg.Static.SelfContained,
		Restart:           restart,
		Inspect:           inspect,
		DryRun:            dryRun,
	}, nil
}
