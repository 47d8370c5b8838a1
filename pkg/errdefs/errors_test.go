package errdefs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindExitCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInternal, 1},
		{KindValidation, 2},
		{KindBuild, 3},
		{KindAuthentication, 4},
		{KindResource, 5},
		{KindPermissionGrant, 6},
		{KindRetryExhausted, 7},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeFromWrappedError(t *testing.T) {
	base := New(KindResource, "provision.EnsurePlan", "quota exceeded")
	wrapped := fmt.Errorf("deploy failed: %w", base)

	if got := ExitCode(wrapped); got != 5 {
		t.Errorf("ExitCode(wrapped) = %d, want 5", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(errors.New("plain")); got != 1 {
		t.Errorf("ExitCode(plain) = %d, want 1", got)
	}
}

func TestKindOfAndIsKind(t *testing.T) {
	err := Wrap(KindBuild, "build.DotNet", "publish failed", errors.New("exit status 1"))
	wrapped := fmt.Errorf("pipeline: %w", err)

	if KindOf(wrapped) != KindBuild {
		t.Errorf("KindOf = %v, want KindBuild", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindBuild) {
		t.Error("IsKind(wrapped, KindBuild) = false, want true")
	}
	if IsKind(wrapped, KindResource) {
		t.Error("IsKind(wrapped, KindResource) = true, want false")
	}
}

func TestUserError(t *testing.T) {
	userKinds := []Kind{KindValidation, KindBuild, KindAuthentication, KindResource}
	systemKinds := []Kind{KindInternal, KindPermissionGrant, KindRetryExhausted}

	for _, k := range userKinds {
		if !k.UserError() {
			t.Errorf("%v.UserError() = false, want true", k)
		}
	}
	for _, k := range systemKinds {
		if k.UserError() {
			t.Errorf("%v.UserError() = true, want false", k)
		}
	}
}

func TestErrorMessageAndCode(t *testing.T) {
	err := Wrap(KindResource, "provision.EnsureWebApp", "name not available", errors.New("conflict")).
		WithMitigation("choose another globally-unique web app name").
		WithContext("webApp", "my-agent")

	want := "provision.EnsureWebApp: name not available: conflict"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if err.Code() != "ERR_RESOURCE" {
		t.Errorf("Code() = %q, want ERR_RESOURCE", err.Code())
	}
	if err.Context["webApp"] != "my-agent" {
		t.Errorf("Context[webApp] = %q", err.Context["webApp"])
	}
	if len(err.Mitigation) != 1 {
		t.Errorf("len(Mitigation) = %d, want 1", len(err.Mitigation))
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(KindAuthentication, "auth.GetToken", "token acquisition failed", cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}
