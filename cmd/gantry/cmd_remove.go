package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"strings"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/gantry"
)

type RemoveParams struct {
	GlobalSettings
	Release string
}

//go:embed cmd_remove_help.txt
var removeHelp string

func init() {
	removeHelp = strings.TrimSpace(internal.Colorize(removeHelp))
}

func GetRemoveParams(settings GlobalSettings, args []string) (*RemoveParams, error) {
	flagset := flag.NewFlagSet("remove", flag.ExitOnError)

	flagset.Usage = func() {
		fmt.Fprintln(flagset.Output(), removeHelp)
		flagset.PrintDefaults()
	}

	params := RemoveParams{GlobalSettings: settings}

	RegisterGlobalFlags(flagset, &params.GlobalSettings)

	flagset.Parse(args)

	params.Release = flagset.Arg(0)
	if params.Release == "" {
		return nil, fmt.Errorf("release is required as first positional arg")
	}

	return &params, nil
}

func Remove(ctx context.Context, params RemoveParams) error {
	commander, err := gantry.FromKubeConfig(params.KubeConfigPath)
	if err != nil {
		return err
	}
	return commander.Remove(ctx, params.Release)
}
