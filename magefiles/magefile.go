//go:build mage

// Package main provides build targets for embedadopt using Mage.
//
// Usage:
//
//	mage build            Compile embedadopt binary to bin/
//	mage test             Run all tests
//	mage testShort        Run tests without the sqlite integration suites
//	mage lint             Run golangci-lint
//	mage clean            Remove build artifacts
//	mage install          Install embedadopt to GOPATH/bin
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "embedadopt"
	binaryDir  = "bin"
	cmdDir     = "./cmd/embedadopt"
	pkgCmd     = "github.com/slattery/paragraphs-inline-entity-form-extras/cmd/embedadopt/cmd"
)

// ldflags stamps the version and commit into the binary.
func ldflags() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "0.0.1-dev"
	}
	commit, err := sh.Output("git", "rev-parse", "--short", "HEAD")
	if err != nil || commit == "" {
		commit = "unknown"
	}
	return fmt.Sprintf("-X %s.Version=%s -X %s.Commit=%s", pkgCmd, version, pkgCmd, commit)
}

// Build compiles the embedadopt binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-ldflags", ldflags(), "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestShort runs tests in short mode, skipping the sqlite integration suites.
func TestShort() error {
	return sh.RunV("go", "test", "-short", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	return sh.Copy(filepath.Join(gopath, "bin", binaryName), filepath.Join(binaryDir, binaryName))
}
