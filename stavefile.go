//go:build stave

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
	"github.com/yaklabco/stave/pkg/target"
)

// Default target when running `stave` with no arguments.
var Default = All

var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"c": Clean,
}

const (
	binary       = "bin/deteval"
	sampleData   = "testdata/sample.json"
	syntheticOut = "testdata/synthetic.json"
	baseline     = "testdata/baseline.snap"
)

// All runs lint, test, and build.
func All() error {
	st.Deps(Init)
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Init ensures the module dependencies are up to date.
func Init() error {
	return sh.Run("go", "mod", "tidy")
}

// Build compiles bin/deteval with version information.
func Build() error {
	st.Deps(Init)

	rebuild, err := target.Glob(binary, "**/*.go", "go.mod", "go.sum")
	if err != nil {
		return fmt.Errorf("checking rebuild: %w", err)
	}
	if !rebuild {
		if st.Verbose() {
			fmt.Println("deteval is up to date")
		}
		return nil
	}
	return sh.RunV("go", "build", "-ldflags", ldflags(), "-o", binary, "./cmd/deteval")
}

func ldflags() string {
	version, _ := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	commit, _ := sh.Output("git", "rev-parse", "--short", "HEAD")

	return fmt.Sprintf(
		"-X main.version=%s -X main.commit=%s -X main.date=%s",
		strings.TrimSpace(version),
		strings.TrimSpace(commit),
		time.Now().Format(time.RFC3339),
	)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Coverage writes coverage.out and coverage.html.
func Coverage() error {
	st.Deps(Init)
	if err := sh.RunV("go", "test", "-race", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Clean removes build artifacts and generated data.
func Clean() error {
	for _, a := range []string{"bin/", "coverage.out", "coverage.html", syntheticOut, baseline} {
		if err := sh.Rm(a); err != nil {
			return fmt.Errorf("removing %s: %w", a, err)
		}
	}
	return nil
}

// CI runs vet, lint, test and build in order.
func CI() error {
	st.Deps(Init)
	st.SerialDeps(Vet, Lint, Test, Build)
	return nil
}

// Eval namespace for evaluation targets.
type Eval st.Namespace

// dataset returns DETEVAL_DATASET or the bundled sample.
func dataset() string {
	if p := os.Getenv("DETEVAL_DATASET"); p != "" {
		return p
	}
	return sampleData
}

func evaluate(args ...string) error {
	st.Deps(Build)
	return sh.RunV(binary, append([]string{"-dataset", dataset()}, args...)...)
}

// Run evaluates the dataset with the default configuration.
func (Eval) Run() error {
	return evaluate()
}

// Sweep runs an IoU threshold sweep over the dataset.
func (Eval) Sweep() error {
	return evaluate("-sweep")
}

// Snapshot records the current run in testdata/baseline.snap.
func (Eval) Snapshot() error {
	return evaluate("-snapshot", baseline)
}

// Compare diffs the current run against testdata/baseline.snap.
func (Eval) Compare() error {
	if _, err := os.Stat(baseline); err != nil {
		return fmt.Errorf("no baseline, run eval:snapshot first: %w", err)
	}
	return evaluate("-compare", baseline)
}

// Synthetic regenerates testdata/synthetic.json and evaluates it.
func (Eval) Synthetic() error {
	if err := sh.RunV("go", "run", "./scripts/gen-synthetic.go", "-out", syntheticOut); err != nil {
		return err
	}
	st.Deps(Build)
	return sh.RunV(binary, "-dataset", syntheticOut)
}
