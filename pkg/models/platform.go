package models

import (
	"fmt"
	"strings"
)

// Platform identifies the build platform of a project directory. It is
// derived from directory contents on every run and never persisted.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformDotNet
	PlatformNodeJs
	PlatformPython
)

func (p Platform) String() string {
	switch p {
	case PlatformDotNet:
		return "dotnet"
	case PlatformNodeJs:
		return "nodejs"
	case PlatformPython:
		return "python"
	default:
		return "unknown"
	}
}

// ParsePlatform converts a user-supplied platform override into a
// Platform tag. The empty string means "no override".
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return PlatformUnknown, nil
	case "dotnet", "csharp":
		return PlatformDotNet, nil
	case "nodejs", "node", "typescript", "javascript":
		return PlatformNodeJs, nil
	case "python":
		return PlatformPython, nil
	default:
		return PlatformUnknown, fmt.Errorf("unsupported platform %q (expected dotnet, nodejs, or python)", s)
	}
}
