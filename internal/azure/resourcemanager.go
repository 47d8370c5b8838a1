package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ResourceManager is the cloud resource-management contract the
// provisioner consumes. Get methods return (nil, nil) when the resource
// does not exist; Create methods return the created resource, which may
// not be immediately visible to Get (propagation delay).
type ResourceManager interface {
	GetResourceGroup(ctx context.Context, name string) (*Resource, error)
	CreateResourceGroup(ctx context.Context, spec ResourceGroupSpec) (*Resource, error)

	GetPlan(ctx context.Context, resourceGroup, name string) (*Resource, error)
	CreatePlan(ctx context.Context, spec PlanSpec) (*Resource, error)

	GetWebApp(ctx context.Context, resourceGroup, name string) (*Resource, error)
	CreateWebApp(ctx context.Context, spec WebAppSpec) (*Resource, error)

	GetManagedIdentity(ctx context.Context, resourceGroup, name string) (*Resource, error)
	CreateManagedIdentity(ctx context.Context, spec ManagedIdentitySpec) (*Resource, error)

	// DeployArchive uploads a zip deployment to the web app.
	DeployArchive(ctx context.Context, resourceGroup, appName, archivePath string) error
}

// NewResourceManager returns the az-CLI-backed implementation. When
// stream is true, subprocess output is mirrored to the operator in real
// time so interactive auth prompts (device codes) are visible.
func NewResourceManager(subscription string, stream bool, logger *zap.Logger) ResourceManager {
	return &azResourceManager{subscription: subscription, stream: stream, logger: logger}
}

type azResourceManager struct {
	subscription string
	stream       bool
	logger       *zap.Logger
}

// run invokes the az CLI and returns its stdout. Failures carry the
// stderr text so callers can classify them.
func (m *azResourceManager) run(ctx context.Context, args ...string) (string, error) {
	if m.subscription != "" {
		args = append(args, "--subscription", m.subscription)
	}
	m.logger.Debug("az", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, "az", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if m.stream {
		cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
	} else {
		cmd.Stderr = &stderr
	}

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("az %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}

// show runs an az "show"-style command, mapping not-found to (nil, nil).
func (m *azResourceManager) show(ctx context.Context, args ...string) (*Resource, error) {
	out, err := m.run(ctx, args...)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return parseResource(out)
}

func (m *azResourceManager) create(ctx context.Context, args ...string) (*Resource, error) {
	out, err := m.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseResource(out)
}

func parseResource(out string) (*Resource, error) {
	var r Resource
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		return nil, fmt.Errorf("unexpected az output: %w", err)
	}
	return &r, nil
}

// IsNotFound reports whether an az failure means "resource does not
// exist" rather than a real error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"ResourceNotFound",
		"ResourceGroupNotFound",
		"NotFound",
		"could not be found",
		"does not exist",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (m *azResourceManager) GetResourceGroup(ctx context.Context, name string) (*Resource, error) {
	return m.show(ctx, "group", "show", "--name", name)
}

func (m *azResourceManager) CreateResourceGroup(ctx context.Context, spec ResourceGroupSpec) (*Resource, error) {
	return m.create(ctx, "group", "create", "--name", spec.Name, "--location", spec.Location)
}

func (m *azResourceManager) GetPlan(ctx context.Context, resourceGroup, name string) (*Resource, error) {
	return m.show(ctx, "appservice", "plan", "show", "--resource-group", resourceGroup, "--name", name)
}

func (m *azResourceManager) CreatePlan(ctx context.Context, spec PlanSpec) (*Resource, error) {
	args := []string{
		"appservice", "plan", "create",
		"--resource-group", spec.ResourceGroup,
		"--name", spec.Name,
		"--location", spec.Location,
		"--is-linux",
	}
	if spec.SKU != "" {
		args = append(args, "--sku", spec.SKU)
	}
	return m.create(ctx, args...)
}

func (m *azResourceManager) GetWebApp(ctx context.Context, resourceGroup, name string) (*Resource, error) {
	return m.show(ctx, "webapp", "show", "--resource-group", resourceGroup, "--name", name)
}

func (m *azResourceManager) CreateWebApp(ctx context.Context, spec WebAppSpec) (*Resource, error) {
	args := []string{
		"webapp", "create",
		"--resource-group", spec.ResourceGroup,
		"--name", spec.Name,
		"--plan", spec.PlanName,
	}
	if spec.Runtime != "" {
		args = append(args, "--runtime", spec.Runtime)
	}
	return m.create(ctx, args...)
}

func (m *azResourceManager) GetManagedIdentity(ctx context.Context, resourceGroup, name string) (*Resource, error) {
	return m.show(ctx, "identity", "show", "--resource-group", resourceGroup, "--name", name)
}

func (m *azResourceManager) CreateManagedIdentity(ctx context.Context, spec ManagedIdentitySpec) (*Resource, error) {
	return m.create(ctx, "identity", "create",
		"--resource-group", spec.ResourceGroup,
		"--name", spec.Name,
		"--location", spec.Location)
}

func (m *azResourceManager) DeployArchive(ctx context.Context, resourceGroup, appName, archivePath string) error {
	_, err := m.run(ctx, "webapp", "deploy",
		"--resource-group", resourceGroup,
		"--name", appName,
		"--src-path", archivePath,
		"--type", "zip")
	return err
}
