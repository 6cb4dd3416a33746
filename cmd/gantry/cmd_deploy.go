package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/gantry"
)

type DeployParams struct {
	GlobalSettings
	Release  string
	SpecPath string
	Input    io.Reader

	SkipDryRun     bool
	ForceConflicts bool
	DiffOnly       bool
	Color          bool
	Context        int
	Wait           time.Duration
	Poll           time.Duration
}

//go:embed cmd_deploy_help.txt
var deployHelp string

func init() {
	deployHelp = strings.TrimSpace(internal.Colorize(deployHelp))
}

func GetDeployParams(settings GlobalSettings, source io.Reader, args []string) (*DeployParams, error) {
	flagset := flag.NewFlagSet("deploy", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), deployHelp)
		flagset.PrintDefaults()
	}

	params := DeployParams{GlobalSettings: settings, Input: source}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.BoolVar(&params.SkipDryRun, "skip-dry-run", false, "disables dry running resources before applying them")
	flagset.BoolVar(&params.ForceConflicts, "force-conflicts", false, "force apply changes on field manager conflicts")
	flagset.BoolVar(&params.DiffOnly, "diff-only", false, "show diff between the last deployed state and the would-be applied state. Does not apply anything to the cluster")
	flagset.BoolVar(&params.Color, "color", term.IsTerminal(int(os.Stdout.Fd())), "use colored output in diffs")
	flagset.IntVar(&params.Context, "context", 4, "number of lines of context in diff (ignored if not using --diff-only)")
	flagset.DurationVar(&params.Wait, "wait", 0, "time to wait for the rollout to become ready")
	flagset.DurationVar(&params.Poll, "poll", 5*time.Second, "interval to poll resource state at. Used with --wait")

	flagset.Parse(args)

	params.Release = flagset.Arg(0)
	params.SpecPath = flagset.Arg(1)

	if params.Release == "" {
		return nil, fmt.Errorf("release is required as first positional arg")
	}
	if params.Input == nil && params.SpecPath == "" {
		return nil, fmt.Errorf("workload spec is required: pass a path as second positional arg or pipe it via stdin")
	}

	return &params, nil
}

func Deploy(ctx context.Context, params DeployParams) error {
	commander, err := gantry.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return err
	}

	spec, err := readSpec(params.Input, params.SpecPath)
	if err != nil {
		return err
	}

	outputs, err := commander.Deploy(ctx, gantry.DeployParams{
		Release:        params.Release,
		Spec:           spec,
		Namespace:      params.Namespace,
		SkipDryRun:     params.SkipDryRun,
		ForceConflicts: params.ForceConflicts,
		DiffOnly:       params.DiffOnly,
		Color:          params.Color,
		Context:        params.Context,
		Wait:           params.Wait,
		Poll:           params.Poll,
	})
	if err != nil || params.DiffOnly {
		return err
	}

	encoder := yaml.NewEncoder(internal.Stdout(ctx))
	encoder.SetIndent(2)
	return encoder.Encode(outputs)
}
