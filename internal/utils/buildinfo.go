package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
)

const (
	unknownVersion = "unknown"
	develVersion   = "(devel)"
)

// Version may be set at link time with -ldflags "-X github.com/temirov/rmtree/internal/utils.Version=v1.2.3".
var Version = EmptyString

// GetApplicationVersion reports the link-time version, then the module version from build info,
// and finally falls back to git describe when running from a checkout.
func GetApplicationVersion() string {
	if Version != EmptyString {
		return Version
	}
	if buildInfo, available := debug.ReadBuildInfo(); available {
		if buildInfo.Main.Version != EmptyString && buildInfo.Main.Version != develVersion {
			return buildInfo.Main.Version
		}
	}
	repositoryDirectory, lookupErr := findGitDirectory(".")
	if lookupErr != nil {
		return unknownVersion
	}
	for _, arguments := range [][]string{
		{"describe", "--tags", "--exact-match"},
		{"describe", "--tags", "--long", "--dirty"},
	} {
		// #nosec G204
		command := exec.Command("git", arguments...)
		command.Dir = repositoryDirectory
		output, commandErr := command.Output()
		if commandErr == nil && len(output) > 0 {
			return strings.TrimSpace(string(output))
		}
	}
	return unknownVersion
}

// findGitDirectory walks up from startDirectory to the directory containing .git.
func findGitDirectory(startDirectory string) (string, error) {
	absoluteStart, absoluteErr := filepath.Abs(startDirectory)
	if absoluteErr != nil {
		return EmptyString, fmt.Errorf("resolve %s: %w", startDirectory, absoluteErr)
	}
	for currentDirectory := absoluteStart; ; {
		if information, statErr := os.Stat(filepath.Join(currentDirectory, GitDirectoryName)); statErr == nil && information.IsDir() {
			return currentDirectory, nil
		}
		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			return EmptyString, fmt.Errorf(".git directory not found in or above %s", absoluteStart)
		}
		currentDirectory = parentDirectory
	}
}
