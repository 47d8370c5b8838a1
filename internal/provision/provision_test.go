package provision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentlaunch-dev/agentlaunch/internal/azure"
	"github.com/agentlaunch-dev/agentlaunch/pkg/errdefs"
)

// fakeResourceManager keeps resources in memory and optionally fails
// creation with a canned error.
type fakeResourceManager struct {
	groups     map[string]*azure.Resource
	plans      map[string]*azure.Resource
	webApps    map[string]*azure.Resource
	identities map[string]*azure.Resource

	createErr error // returned by every Create call when set

	// visibleAfterGets delays Get visibility after creation to exercise
	// the polling loop. Counts remaining Gets that miss.
	visibleAfterGets int

	createCalls int
	deployCalls int
}

func newFakeRM() *fakeResourceManager {
	return &fakeResourceManager{
		groups:     make(map[string]*azure.Resource),
		plans:      make(map[string]*azure.Resource),
		webApps:    make(map[string]*azure.Resource),
		identities: make(map[string]*azure.Resource),
	}
}

func (f *fakeResourceManager) get(m map[string]*azure.Resource, name string) (*azure.Resource, error) {
	if f.visibleAfterGets > 0 {
		f.visibleAfterGets--
		return nil, nil
	}
	return m[name], nil
}

func (f *fakeResourceManager) create(m map[string]*azure.Resource, name string) (*azure.Resource, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	r := &azure.Resource{ID: "/subscriptions/s/" + name, Name: name}
	m[name] = r
	return r, nil
}

func (f *fakeResourceManager) GetResourceGroup(_ context.Context, name string) (*azure.Resource, error) {
	return f.get(f.groups, name)
}

func (f *fakeResourceManager) CreateResourceGroup(_ context.Context, spec azure.ResourceGroupSpec) (*azure.Resource, error) {
	return f.create(f.groups, spec.Name)
}

func (f *fakeResourceManager) GetPlan(_ context.Context, _, name string) (*azure.Resource, error) {
	return f.get(f.plans, name)
}

func (f *fakeResourceManager) CreatePlan(_ context.Context, spec azure.PlanSpec) (*azure.Resource, error) {
	return f.create(f.plans, spec.Name)
}

func (f *fakeResourceManager) GetWebApp(_ context.Context, _, name string) (*azure.Resource, error) {
	return f.get(f.webApps, name)
}

func (f *fakeResourceManager) CreateWebApp(_ context.Context, spec azure.WebAppSpec) (*azure.Resource, error) {
	return f.create(f.webApps, spec.Name)
}

func (f *fakeResourceManager) GetManagedIdentity(_ context.Context, _, name string) (*azure.Resource, error) {
	return f.get(f.identities, name)
}

func (f *fakeResourceManager) CreateManagedIdentity(_ context.Context, spec azure.ManagedIdentitySpec) (*azure.Resource, error) {
	return f.create(f.identities, spec.Name)
}

func (f *fakeResourceManager) DeployArchive(_ context.Context, _, _, _ string) error {
	f.deployCalls++
	return nil
}

func newTestProvisioner(rm azure.ResourceManager) *Provisioner {
	p := New(rm, zap.NewNop())
	p.SetPollBudget(time.Millisecond, 50*time.Millisecond)
	return p
}

func TestEnsureResourceGroupIdempotent(t *testing.T) {
	rm := newFakeRM()
	p := newTestProvisioner(rm)
	spec := azure.ResourceGroupSpec{Name: "rg-agents", Location: "westus2"}

	existed, first, err := p.EnsureResourceGroup(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, existed, "first call must create")
	require.NotNil(t, first)

	existed, second, err := p.EnsureResourceGroup(context.Background(), spec)
	require.NoError(t, err)
	assert.True(t, existed, "second call must be a no-op")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, rm.createCalls, "no duplicate resource created")
}

func TestEnsurePlanPollsUntilVisible(t *testing.T) {
	rm := newFakeRM()
	rm.visibleAfterGets = 3 // initial Get plus two polling misses
	p := newTestProvisioner(rm)

	existed, plan, err := p.EnsurePlan(context.Background(), azure.PlanSpec{
		Name: "plan-agents", ResourceGroup: "rg-agents", Location: "westus2", SKU: "B1",
	})
	require.NoError(t, err)
	assert.False(t, existed)
	require.NotNil(t, plan)
	assert.Equal(t, "plan-agents", plan.Name)
}

func TestEnsurePlanQuotaFailure(t *testing.T) {
	rm := newFakeRM()
	rm.createErr = errors.New("Operation cannot be completed without additional quota. QuotaExceeded for SKU P1v3 in region westus2")
	p := newTestProvisioner(rm)

	_, _, err := p.EnsurePlan(context.Background(), azure.PlanSpec{
		Name: "plan-agents", ResourceGroup: "rg-agents", Location: "westus2", SKU: "P1v3",
	})
	require.Error(t, err)
	assert.True(t, errdefs.IsKind(err, errdefs.KindResource))

	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "QuotaExceeded", e.Context["class"])
	require.NotEmpty(t, e.Mitigation)
	assert.Contains(t, e.Mitigation[0], "SKU")
}

func TestEnsureWebAppNameCollision(t *testing.T) {
	rm := newFakeRM()
	rm.createErr = errors.New("Website with given name my-agent already exists.")
	p := newTestProvisioner(rm)

	_, _, err := p.EnsureWebApp(context.Background(), azure.WebAppSpec{
		Name: "my-agent", ResourceGroup: "rg-agents", PlanName: "plan-agents",
	})
	require.Error(t, err)

	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "NameTaken", e.Context["class"])
	assert.Contains(t, e.Mitigation[0], "globally-unique")
}

func TestVerificationTimeoutSurfaced(t *testing.T) {
	rm := newFakeRM()
	rm.visibleAfterGets = 1_000_000 // never becomes visible
	p := newTestProvisioner(rm)

	_, _, err := p.EnsureManagedIdentity(context.Background(), azure.ManagedIdentitySpec{
		Name: "my-agent-mi", ResourceGroup: "rg-agents", Location: "westus2",
	})
	require.Error(t, err)

	var e *errdefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "VerificationTimeout", e.Context["class"])
	assert.Equal(t, 1, rm.createCalls, "creation ran before verification timed out")
}

func TestCancellationDuringPollingIsNotAResourceError(t *testing.T) {
	rm := newFakeRM()
	rm.visibleAfterGets = 1_000_000 // keep the polling loop busy
	p := New(rm, zap.NewNop())
	p.SetPollBudget(time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, _, err := p.EnsureManagedIdentity(ctx, azure.ManagedIdentitySpec{
		Name: "my-agent-mi", ResourceGroup: "rg-agents", Location: "westus2",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errdefs.IsKind(err, errdefs.KindResource),
		"operator cancellation must not surface as a resource failure")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want FailureClass
	}{
		{"quota", "QuotaExceeded: subscription limit reached", FailureQuotaExceeded},
		{"sku", "The requested SKU is not available in region eastus", FailureSkuNotAvailable},
		{"authz", "AuthorizationFailed: the client does not have authorization", FailureAuthorization},
		{"name taken", "Hostname conflict: site name already taken", FailureNameTaken},
		{"other", "InternalServerError: please retry", FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(errors.New(tt.msg)))
		})
	}
}
