// Package provision idempotently creates and verifies the cloud
// infrastructure a managed agent deployment needs.
package provision

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/internal/azure"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

// Provisioner reconciles desired resources against what already exists.
// Every Ensure method reports existed=true and leaves the resource
// untouched when a matching one is found.
type Provisioner struct {
	rm     azure.ResourceManager
	logger *zap.Logger

	// pollInterval/pollBudget bound the existence polling after
	// creation; resource visibility can lag creation.
	pollInterval time.Duration
	pollBudget   time.Duration
}

func New(rm azure.ResourceManager, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		rm:           rm,
		logger:       logger,
		pollInterval: 5 * time.Second,
		pollBudget:   2 * time.Minute,
	}
}

// ensure is the shared create-or-get skeleton: look up, create when
// missing, then poll until the resource is visible.
func (p *Provisioner) ensure(
	ctx context.Context,
	op, name string,
	get func(context.Context) (*azure.Resource, error),
	create func(context.Context) (*azure.Resource, error),
) (bool, *azure.Resource, error) {
	existing, err := get(ctx)
	if err != nil {
		return false, nil, p.wrap(op, name, err)
	}
	if existing != nil {
		p.logger.Info("resource already exists", zap.String("op", op), zap.String("name", name))
		return true, existing, nil
	}

	created, err := create(ctx)
	if err != nil {
		return false, nil, p.wrap(op, name, err)
	}
	p.logger.Info("resource created", zap.String("op", op), zap.String("name", name))

	verified, err := p.awaitVisible(ctx, get)
	if err != nil {
		// Operator cancellation is not a resource failure.
		if ctx.Err() != nil {
			return false, nil, ctx.Err()
		}
		return false, nil, p.verificationTimeout(op, name, err)
	}
	if verified != nil {
		created = verified
	}
	return false, created, nil
}

// awaitVisible polls get until it returns a resource or the budget runs
// out.
func (p *Provisioner) awaitVisible(ctx context.Context, get func(context.Context) (*azure.Resource, error)) (*azure.Resource, error) {
	deadline := time.Now().Add(p.pollBudget)
	for {
		r, err := get(ctx)
		if err == nil && r != nil {
			return r, nil
		}
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if time.Now().After(deadline) {
			return nil, context.DeadlineExceeded
		}
		timer := time.NewTimer(p.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p *Provisioner) wrap(op, name string, err error) error {
	class := classify(err)
	e := errdefs.Wrap(errdefs.KindResource, op, class.String(), err).
		WithContext("resource", name).
		WithContext("class", class.String()).
		WithMitigation(mitigationFor(class)...)
	return e
}

// verificationTimeout is not strictly a user error: creation likely
// succeeded and a re-run picks it up through the idempotent check.
func (p *Provisioner) verificationTimeout(op, name string, err error) error {
	return errdefs.Wrap(errdefs.KindResource, op, FailureVerificationTimeout.String(), err).
		WithContext("resource", name).
		WithContext("class", FailureVerificationTimeout.String()).
		WithMitigation(mitigationFor(FailureVerificationTimeout)...)
}

func (p *Provisioner) EnsureResourceGroup(ctx context.Context, spec azure.ResourceGroupSpec) (bool, *azure.Resource, error) {
	return p.ensure(ctx, "provision.EnsureResourceGroup", spec.Name,
		func(ctx context.Context) (*azure.Resource, error) { return p.rm.GetResourceGroup(ctx, spec.Name) },
		func(ctx context.Context) (*azure.Resource, error) { return p.rm.CreateResourceGroup(ctx, spec) },
	)
}

func (p *Provisioner) EnsurePlan(ctx context.Context, spec azure.PlanSpec) (bool, *azure.Resource, error) {
	return p.ensure(ctx, "provision.EnsurePlan", spec.Name,
		func(ctx context.Context) (*azure.Resource, error) {
			return p.rm.GetPlan(ctx, spec.ResourceGroup, spec.Name)
		},
		func(ctx context.Context) (*azure.Resource, error) { return p.rm.CreatePlan(ctx, spec) },
	)
}

func (p *Provisioner) EnsureWebApp(ctx context.Context, spec azure.WebAppSpec) (bool, *azure.Resource, error) {
	return p.ensure(ctx, "provision.EnsureWebApp", spec.Name,
		func(ctx context.Context) (*azure.Resource, error) {
			return p.rm.GetWebApp(ctx, spec.ResourceGroup, spec.Name)
		},
		func(ctx context.Context) (*azure.Resource, error) { return p.rm.CreateWebApp(ctx, spec) },
	)
}

func (p *Provisioner) EnsureManagedIdentity(ctx context.Context, spec azure.ManagedIdentitySpec) (bool, *azure.Resource, error) {
	return p.ensure(ctx, "provision.EnsureManagedIdentity", spec.Name,
		func(ctx context.Context) (*azure.Resource, error) {
			return p.rm.GetManagedIdentity(ctx, spec.ResourceGroup, spec.Name)
		},
		func(ctx context.Context) (*azure.Resource, error) { return p.rm.CreateManagedIdentity(ctx, spec) },
	)
}

// DeployArchive uploads the deployment archive to the web app.
func (p *Provisioner) DeployArchive(ctx context.Context, resourceGroup, appName, archivePath string) error {
	if err := p.rm.DeployArchive(ctx, resourceGroup, appName, archivePath); err != nil {
		return p.wrap("provision.DeployArchive", appName, err)
	}
	p.logger.Info("archive deployed",
		zap.String("webApp", appName),
		zap.String("archive", archivePath))
	return nil
}

// SetPollBudget adjusts the existence-polling bounds; tests shrink them.
func (p *Provisioner) SetPollBudget(interval, budget time.Duration) {
	p.pollInterval = interval
	p.pollBudget = budget
}
