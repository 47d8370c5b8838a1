// Package pipeline composes detection, build, packaging, provisioning,
// upload, and the permission phase into the deploy command's two entry
// points. All phases run sequentially; each depends on the previous
// phase's output.
package pipeline

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/internal/azure"
	"github.com/agentlaunch-dev/agentlaunch/internal/build"
	"github.com/agentlaunch-dev/agentlaunch/internal/config"
	"github.com/agentlaunch-dev/agentlaunch/internal/grants"
	"github.com/agentlaunch-dev/agentlaunch/internal/packaging"
	"github.com/agentlaunch-dev/agentlaunch/internal/platform"
	"github.com/agentlaunch-dev/agentlaunch/internal/provision"
	"github.com/agentlaunch-dev/agentlaunch/internal/retry"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
	"github.com/agentlaunch-dev/agentlaunch/pkg/printer"
)

// Params wires the pipeline's collaborators. Tests substitute fakes.
type Params struct {
	Config      *models.Configuration
	Store       *config.Store
	Builder     *build.Orchestrator
	Packager    *packaging.Generator
	Provisioner *provision.Provisioner
	Directory   azure.IdentityDirectory
	Logger      *zap.Logger

	// RetryOptions applies to network-facing steps. Zero value uses the
	// default policy.
	RetryOptions retry.Options

	// Stdin feeds the --inspect pause prompt.
	Stdin io.Reader
}

type Pipeline struct {
	cfg         *models.Configuration
	store       *config.Store
	builder     *build.Orchestrator
	packager    *packaging.Generator
	provisioner *provision.Provisioner
	directory   azure.IdentityDirectory
	logger      *zap.Logger
	retryOpts   retry.Options
	stdin       io.Reader
}

func New(p Params) *Pipeline {
	if p.RetryOptions.MaxRetries == 0 {
		p.RetryOptions = retry.DefaultOptions()
	}
	if p.Stdin == nil {
		p.Stdin = os.Stdin
	}
	return &Pipeline{
		cfg:         p.Config,
		store:       p.Store,
		builder:     p.Builder,
		packager:    p.Packager,
		provisioner: p.Provisioner,
		directory:   p.Directory,
		logger:      p.Logger,
		retryOpts:   p.RetryOptions,
		stdin:       p.Stdin,
	}
}

// Deploy runs detection, build, packaging, provisioning, and upload.
func (p *Pipeline) Deploy(ctx context.Context, dcfg models.DeploymentConfiguration) error {
	if err := p.validate(); err != nil {
		return err
	}

	plat := dcfg.PlatformOverride
	if plat == models.PlatformUnknown {
		detected, err := platform.Detect(dcfg.ProjectPath)
		if err != nil {
			return err
		}
		plat = detected
	}
	printer.PrintInfo("Platform: " + plat.String())

	if dcfg.DryRun {
		p.printPlan(dcfg, plat)
		return nil
	}

	publishPath, err := p.builder.Build(ctx, dcfg, plat)
	if err != nil {
		return err
	}

	manifest, archivePath, err := p.packager.Package(ctx, publishPath, plat, packaging.Options{
		AppName:        dcfg.AppName,
		ArchivePath:    archiveTarget(dcfg),
		ArtifactReused: dcfg.Restart,
	})
	if err != nil {
		return err
	}
	printer.PrintSuccess("Packaged " + archivePath)

	if dcfg.Inspect {
		printer.PrintInfo("Inspect pause: examine the artifact at " + archivePath)
		if !printer.Confirm(ctx, p.stdin, "Continue with upload?") {
			printer.PrintWarning("Deployment cancelled at inspect pause")
			return nil
		}
	}

	if !p.cfg.ManagedDeployment() {
		printer.PrintInfo("External endpoint declared; skipping managed web app provisioning and upload")
		return nil
	}

	webApp, err := p.provisionResources(ctx, dcfg, plat)
	if err != nil {
		return err
	}

	if _, err := retry.Do(ctx, "pipeline.upload", p.uploadRetryOptions(), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.provisioner.DeployArchive(ctx, dcfg.ResourceGroup, webApp.Name, archivePath)
	}); err != nil {
		return err
	}

	p.cfg.Dynamic.LastDeployment = &models.DeploymentRecord{
		ID:          uuid.NewString(),
		WebAppName:  webApp.Name,
		Platform:    manifest.Platform,
		ArchivePath: archivePath,
		DeployedAt:  time.Now().UTC(),
		Succeeded:   true,
	}
	if err := p.store.Save(p.cfg); err != nil {
		return err
	}

	printer.PrintSuccess("Deployed " + webApp.Name)
	return nil
}

// provisionResources reconciles the resource group, plan, web app, and
// managed identity, then checkpoints the dynamic state.
func (p *Pipeline) provisionResources(ctx context.Context, dcfg models.DeploymentConfiguration, plat models.Platform) (*azure.Resource, error) {
	opts := p.provisionRetryOptions()
	static := p.cfg.Static

	if _, err := retry.Do(ctx, "provision.EnsureResourceGroup", opts, func(ctx context.Context) (*azure.Resource, error) {
		_, r, err := p.provisioner.EnsureResourceGroup(ctx, azure.ResourceGroupSpec{
			Name:     dcfg.ResourceGroup,
			Location: static.Location,
		})
		return r, err
	}); err != nil {
		return nil, err
	}

	if _, err := retry.Do(ctx, "provision.EnsurePlan", opts, func(ctx context.Context) (*azure.Resource, error) {
		_, r, err := p.provisioner.EnsurePlan(ctx, azure.PlanSpec{
			Name:          static.PlanName,
			ResourceGroup: dcfg.ResourceGroup,
			Location:      static.Location,
			SKU:           static.PlanSKU,
		})
		return r, err
	}); err != nil {
		return nil, err
	}

	webApp, err := retry.Do(ctx, "provision.EnsureWebApp", opts, func(ctx context.Context) (*azure.Resource, error) {
		_, r, err := p.provisioner.EnsureWebApp(ctx, azure.WebAppSpec{
			Name:          dcfg.AppName,
			ResourceGroup: dcfg.ResourceGroup,
			PlanName:      static.PlanName,
			Runtime:       runtimeFor(plat),
		})
		return r, err
	})
	if err != nil {
		return nil, err
	}

	identity, err := retry.Do(ctx, "provision.EnsureManagedIdentity", opts, func(ctx context.Context) (*azure.Resource, error) {
		_, r, err := p.provisioner.EnsureManagedIdentity(ctx, azure.ManagedIdentitySpec{
			Name:          static.AgentIdentityName,
			ResourceGroup: dcfg.ResourceGroup,
			Location:      static.Location,
		})
		return r, err
	})
	if err != nil {
		return nil, err
	}
	p.cfg.Dynamic.ManagedIdentityID = identity.ID

	// Checkpoint before upload so a later failure resumes from here.
	if err := p.store.Save(p.cfg); err != nil {
		return nil, err
	}
	return webApp, nil
}

// GrantPermissions runs the permission phase against the scopes the
// tooling manifest declares, then checkpoints the consent records.
func (p *Pipeline) GrantPermissions(ctx context.Context, manifestPath string) error {
	if err := p.validate(); err != nil {
		return err
	}

	if manifestPath == "" {
		manifestPath = p.cfg.Static.ToolingManifestPath
	}
	if manifestPath == "" {
		return errdefs.New(errdefs.KindValidation, "pipeline.GrantPermissions",
			"no tooling manifest configured").
			WithMitigation("set toolingManifestPath in the configuration or pass --manifest")
	}

	manifest, err := models.LoadToolingManifest(manifestPath)
	if err != nil {
		return errdefs.Wrap(errdefs.KindValidation, "pipeline.GrantPermissions",
			"invalid tooling manifest", err).
			WithContext("path", manifestPath)
	}

	sequencer := grants.New(p.directory, p.cfg, p.logger)
	_, runErr := retry.Do(ctx, "pipeline.grants", p.retryOpts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, sequencer.Run(ctx, manifest)
	})

	// Consent records updated by partial progress are persisted even on
	// failure; re-running resumes safely.
	if saveErr := p.store.Save(p.cfg); saveErr != nil && runErr == nil {
		return saveErr
	}
	if runErr != nil {
		return runErr
	}

	printer.PrintSuccess("Permission grants applied for " + manifestPath)
	return nil
}

func (p *Pipeline) validate() error {
	errs := p.cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return errdefs.New(errdefs.KindValidation, "pipeline.validate",
		"configuration is incomplete: "+strings.Join(msgs, "; ")).
		WithMitigation("fill in the missing fields in the configuration file and re-run")
}

func (p *Pipeline) printPlan(dcfg models.DeploymentConfiguration, plat models.Platform) {
	steps := p.builder.Plan(dcfg, plat)
	steps = append(steps,
		"package "+dcfg.PublishOutputPath+" into "+archiveTarget(dcfg),
	)
	if p.cfg.ManagedDeployment() {
		steps = append(steps,
			"ensure resource group "+dcfg.ResourceGroup,
			"ensure app service plan "+p.cfg.Static.PlanName,
			"ensure web app "+dcfg.AppName,
			"ensure managed identity "+p.cfg.Static.AgentIdentityName,
			"upload archive to "+dcfg.AppName,
		)
	}
	printer.PrintSteps("Planned steps (dry run):", steps)
}

func (p *Pipeline) provisionRetryOptions() retry.Options {
	opts := p.retryOpts
	opts.ShouldRetry = provision.ShouldRetry
	return opts
}

func (p *Pipeline) uploadRetryOptions() retry.Options {
	return p.provisionRetryOptions()
}

func archiveTarget(dcfg models.DeploymentConfiguration) string {
	name := dcfg.ArchiveName
	if name == "" {
		name = "deploy.zip"
	}
	return name
}

func runtimeFor(p models.Platform) string {
	switch p {
	case models.PlatformDotNet:
		return "DOTNETCORE|8.0"
	case models.PlatformNodeJs:
		return "NODE|20-lts"
	case models.PlatformPython:
		return "PYTHON|3.11"
	default:
		return ""
	}
}
