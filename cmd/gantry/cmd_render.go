package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/compile"
	"github.com/gantry-dev/gantry/pkg/gantry"
	"github.com/gantry-dev/gantry/pkg/workload"
)

type RenderParams struct {
	GlobalSettings
	SpecPath   string
	Input      io.Reader
	SelectorID string
	Out        string
}

//go:embed cmd_render_help.txt
var renderHelp string

func init() {
	renderHelp = strings.TrimSpace(internal.Colorize(renderHelp))
}

func GetRenderParams(settings GlobalSettings, source io.Reader, args []string) (*RenderParams, error) {
	flagset := flag.NewFlagSet("render", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), renderHelp)
		flagset.PrintDefaults()
	}

	params := RenderParams{GlobalSettings: settings, Input: source}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.StringVar(&params.SelectorID, "selector-id", "", "pin the pod selector identity instead of generating a fresh one")
	flagset.StringVar(&params.Out, "out", "", "write resources as yaml to the directory specified. If out is - writes yaml to standard out")

	flagset.Parse(args)

	params.SpecPath = flagset.Arg(0)

	if params.Input == nil && params.SpecPath == "" {
		return nil, fmt.Errorf("workload spec is required: pass a path or pipe it via stdin")
	}

	return &params, nil
}

func Render(ctx context.Context, params RenderParams) error {
	defer internal.DebugTimer(ctx, "render")()

	spec, err := readSpec(params.Input, params.SpecPath)
	if err != nil {
		return err
	}
	if spec.Namespace == "" {
		spec.Namespace = params.Namespace
	}

	result, err := compile.Compile(spec, compile.Options{SelectorID: params.SelectorID})
	if err != nil {
		return err
	}

	resources, err := result.Resources()
	if err != nil {
		return fmt.Errorf("failed to convert resources: %w", err)
	}

	switch params.Out {
	case "":
		return json.NewEncoder(internal.Stdout(ctx)).Encode(resources)
	case "-":
		return gantry.ExportToStdout(ctx, resources)
	default:
		return gantry.ExportToFS(params.Out, spec.Name, resources)
	}
}

func readSpec(input io.Reader, path string) (workload.Spec, error) {
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return workload.Spec{}, fmt.Errorf("failed to open workload spec: %w", err)
		}
		defer file.Close()
		return workload.Decode(file)
	}
	return workload.Decode(input)
}
