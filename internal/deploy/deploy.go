// Package deploy builds the web client and publishes it to Firebase.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gustavlindstroms/parkmalmokontor/internal/config"
)

const (
	TargetHosting = "hosting"
	TargetAll     = "all"
)

// Command is one external program invocation.
type Command struct {
	Name string
	Args []string
	Dir  string // working directory; empty means the current one
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands as child processes wired to the given streams.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout, c.Stderr, c.Stdin = r.Stdout, r.Stderr, os.Stdin
	return c.Run()
}

// Plan is the resolved build and deploy for one environment.
type Plan struct {
	Mode      string
	Target    string
	EnvFile   string
	ProjectID string
	Build     Command
	Deploy    Command
}

// NewPlan reads the env profile of mode and resolves the commands. envDir is the web
// client directory: it holds the .env files and the commands run there. A
// FIREBASE_PROJECT_ID set in the environment wins over the profile, as with dotenv.
func NewPlan(mode, target, envDir string) (Plan, error) {
	if mode != config.EnvDevelopment && mode != config.EnvProduction {
		return Plan{}, fmt.Errorf("unknown mode %q: use %s or %s", mode, config.EnvDevelopment, config.EnvProduction)
	}
	if target != TargetHosting && target != TargetAll {
		return Plan{}, fmt.Errorf("unknown target %q: use %s or %s", target, TargetHosting, TargetAll)
	}

	envFile := config.EnvFile(mode)
	env, err := godotenv.Read(filepath.Join(envDir, envFile))
	if err != nil {
		return Plan{}, fmt.Errorf("error loading %s: make sure it exists and contains FIREBASE_PROJECT_ID: %w", envFile, err)
	}
	projectID := os.Getenv("FIREBASE_PROJECT_ID")
	if projectID == "" {
		projectID = env["FIREBASE_PROJECT_ID"]
	}
	if projectID == "" {
		return Plan{}, fmt.Errorf("FIREBASE_PROJECT_ID not found in %s", envFile)
	}

	build := "build:prod"
	if mode == config.EnvDevelopment {
		build = "build:dev"
	}
	deployArgs := []string{"deploy", "--project", projectID}
	if target == TargetHosting {
		deployArgs = append(deployArgs, "--only", "hosting")
	}

	return Plan{
		Mode:      mode,
		Target:    target,
		EnvFile:   envFile,
		ProjectID: projectID,
		Build:     Command{Name: "npm", Args: []string{"run", build}, Dir: envDir},
		Deploy:    Command{Name: "firebase", Args: deployArgs, Dir: envDir},
	}, nil
}

var (
	ErrBuildFailed  = errors.New("build failed")
	ErrDeployFailed = errors.New("deployment failed")
)

// Execute runs the build and then the deploy. The deploy is not attempted after a failed build.
func Execute(ctx context.Context, plan Plan, runner Runner, logger *zap.Logger) error {
	logger.Info("Building", zap.String("mode", plan.Mode))
	if err := runner.Run(ctx, plan.Build); err != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	logger.Info("Deploying to Firebase project", zap.String("project", plan.ProjectID), zap.String("target", plan.Target))
	if err := runner.Run(ctx, plan.Deploy); err != nil {
		return fmt.Errorf("%w: %w", ErrDeployFailed, err)
	}
	logger.Info("Deployment successful")
	return nil
}
