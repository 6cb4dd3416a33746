package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/internal/k8s"
)

type InspectParams struct {
	GlobalSettings
	Release string
}

//go:embed cmd_inspect_help.txt
var inspectHelp string

func init() {
	inspectHelp = strings.TrimSpace(internal.Colorize(inspectHelp))
}

func GetInspectParams(settings GlobalSettings, args []string) (*InspectParams, error) {
	flagset := flag.NewFlagSet("inspect", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), inspectHelp)
		flagset.PrintDefaults()
	}

	params := InspectParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	params.Release = flagset.Arg(0)

	return &params, nil
}

func Inspect(ctx context.Context, params InspectParams) error {
	client, err := k8s.NewClientFromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return fmt.Errorf("failed to instantiate k8s client: %w", err)
	}

	states, err := client.GetAllStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to get release states: %w", err)
	}

	if params.Release == "" {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleRounded)

		tbl.AppendHeader(table.Row{"release", "namespace", "workload", "identity"})
		for _, state := range states {
			tbl.AppendRow(table.Row{state.Release, state.Namespace, state.Workload, state.Identity})
		}

		_, err = io.WriteString(internal.Stdout(ctx), tbl.Render()+"\n")
		return err
	}

	state, ok := internal.Find(states, func(state internal.State) bool {
		return state.Release == params.Release
	})
	if !ok {
		return fmt.Errorf("release %q not found", params.Release)
	}

	encoder := yaml.NewEncoder(internal.Stdout(ctx))
	encoder.SetIndent(2)

	if err := encoder.Encode(internal.CanonicalObjectMap(state.Resources)); err != nil {
		return fmt.Errorf("failed to encode resources: %w", err)
	}
	return nil
}
