package build

import (
	"context"

	"github.com/agentlaunch-dev/agentlaunch/pkg/models"
)

func dotnetPublishArgs(dcfg models.DeploymentConfiguration) []string {
	args := []string{"publish", "-c", "Release", "-o", dcfg.PublishOutputPath}
	if dcfg.SelfContained {
		args = append(args, "--self-contained", "true")
	} else {
		args = append(args, "--self-contained", "false")
	}
	return args
}

func buildDotNet(ctx context.Context, o *Orchestrator, dcfg models.DeploymentConfiguration) error {
	if err := requireTool(o.runner, "dotnet",
		"install the .NET SDK from https://dotnet.microsoft.com/download"); err != nil {
		return err
	}

	if out, err := o.runner.Run(ctx, dcfg.ProjectPath, "dotnet", "restore"); err != nil {
		return wrapStep("restore", out, err)
	}

	if out, err := o.runner.Run(ctx, dcfg.ProjectPath, "dotnet", dotnetPublishArgs(dcfg)...); err != nil {
		return wrapStep("publish", out, err)
	}
	return nil
}

func planDotNet(dcfg models.DeploymentConfiguration) []string {
	mode := "framework-dependent"
	if dcfg.SelfContained {
		mode = "self-contained"
	}
	return []string{
		"dotnet restore",
		"dotnet publish -c Release (" + mode + ") -o " + dcfg.PublishOutputPath,
	}
}
