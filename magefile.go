//go:build mage

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const (
	goCmd  = "go"
	binDir = "bin"
	linter = "golangci-lint"
)

// Build compiles every package and writes the tbdex binary to bin/.
func Build() error {
	fmt.Println("Building...")
	if err := sh.Run(goCmd, "build", "./..."); err != nil {
		return err
	}
	return sh.Run(goCmd, "build", "-o", filepath.Join(binDir, "tbdex"), "./cmd/tbdex")
}

// Clean deletes build and coverage artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll(binDir); err != nil {
		return err
	}
	return sh.Rm("coverage.out")
}

// Test runs the unit tests with the race detector. Pass -v to mage for verbose output.
func Test() error {
	return goTest()
}

// CITest runs the unit tests and writes coverage.out.
func CITest() error {
	return goTest("-covermode=atomic", "-coverprofile=coverage.out")
}

// Lint runs golangci-lint, installing it into GOPATH/bin when it cannot be found.
func Lint() error {
	path, err := toolPath(linter, "github.com/golangci/golangci-lint/cmd/golangci-lint@latest")
	if err != nil {
		return err
	}
	return sh.Run(path, "run")
}

// CBT runs clean, build and test.
func CBT() error {
	mg.SerialDeps(Clean, Build, Test)
	return nil
}

func goTest(extra ...string) error {
	args := []string{"test", "-race"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, extra...)
	args = append(args, "./...")
	logrus.Debugf("running go %v", args)

	// the race detector needs cgo
	env := map[string]string{"CGO_ENABLED": "1"}
	_, err := sh.Exec(env, testOutput(), os.Stderr, goCmd, args...)
	return err
}

// testOutput colors PASS and FAIL lines when stdout is a terminal.
func testOutput() io.Writer {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return os.Stdout
	}
	green := &colorWriter{inner: os.Stdout, re: regexp.MustCompile(`PASS.*`), repl: []byte("\033[32m$0\033[0m")}
	return &colorWriter{inner: green, re: regexp.MustCompile(`FAIL.*`), repl: []byte("\033[31m$0\033[0m")}
}

type colorWriter struct {
	inner io.Writer
	re    *regexp.Regexp
	repl  []byte
}

func (w *colorWriter) Write(p []byte) (int, error) {
	colored := w.re.ReplaceAll(p, w.repl)
	if _, err := w.inner.Write(colored); err != nil {
		return 0, err
	}
	return len(p), nil
}

// toolPath finds a go tool on PATH or in GOPATH/bin, go installing it when missing.
func toolPath(name, pkg string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	gopath, err := sh.Output(goCmd, "env", "GOPATH")
	if err != nil {
		return "", err
	}
	path := filepath.Join(gopath, "bin", name)
	if _, err = os.Stat(path); err == nil {
		return path, nil
	}
	fmt.Printf("Installing %s\n", pkg)
	if err = sh.Run(goCmd, "install", pkg); err != nil {
		return "", err
	}
	return path, nil
}
