package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	homeDir    string
	recipesDir string
	binPath    string
	stdout     string
	stderr     string
	exitCode   int
}

func getState(ctx context.Context) *testState {
	if s, ok := ctx.Value(stateKey).(*testState); ok {
		return s
	}
	return nil
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("RECIPE_TEST_BINARY")
	if binPath == "" {
		t.Skip("RECIPE_TEST_BINARY not set; point it at a built recipe binary")
	}

	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}
	binPath = absBin

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("RECIPE_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, binPath)
		},
		Options: opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		repoRoot := filepath.Dir(binPath)
		homeDir := filepath.Join(repoRoot, ".recipe-test", sanitizeScenarioName(sc.Name))
		os.RemoveAll(homeDir)
		recipesDir := filepath.Join(homeDir, "recipes")
		if err := os.MkdirAll(recipesDir, 0o755); err != nil {
			return ctx, err
		}

		state := &testState{
			homeDir:    homeDir,
			recipesDir: recipesDir,
			binPath:    binPath,
		}
		return setState(ctx, state), nil
	})

	ctx.Step(`^a clean recipe environment$`, aCleanRecipeEnvironment)
	ctx.Step(`^a recipe "([^"]*)" containing:$`, aRecipeContaining)
	ctx.Step(`^I run "([^"]*)"$`, iRun)

	ctx.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	ctx.Step(`^the exit code is not (\d+)$`, theExitCodeIsNot)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the output does not contain "([^"]*)"$`, theOutputDoesNotContain)
	ctx.Step(`^the error output contains "([^"]*)"$`, theErrorOutputContains)
	ctx.Step(`^the file "([^"]*)" exists$`, theFileExists)
	ctx.Step(`^the file "([^"]*)" does not exist$`, theFileDoesNotExist)
	ctx.Step(`^the recipe "([^"]*)" contains "([^"]*)"$`, theRecipeContains)
}

func sanitizeScenarioName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		out = append(out, '-')
	}
	return string(out)
}
