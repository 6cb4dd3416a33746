package main

import (
	"cmp"
	"flag"
	"os"
	"path/filepath"

	"github.com/davidmdm/conf"
)

type GlobalSettings struct {
	KubeConfigPath string
	Namespace      string
	Debug          bool
}

var home string

func init() {
	home, _ = os.UserHomeDir()
}

// LoadSettings resolves settings from the environment; flags registered via
// RegisterGlobalFlags override them per invocation.
func LoadSettings() (settings GlobalSettings, err error) {
	conf.Var(conf.Environ, &settings.KubeConfigPath, "GANTRY_KUBECONFIG")
	conf.Var(conf.Environ, &settings.Namespace, "GANTRY_NAMESPACE")
	conf.Var(conf.Environ, &settings.Debug, "GANTRY_DEBUG")
	if err = conf.Environ.Parse(); err != nil {
		return
	}

	settings.KubeConfigPath = cmp.Or(settings.KubeConfigPath, filepath.Join(home, ".kube/config"))
	settings.Namespace = cmp.Or(settings.Namespace, "default")

	return
}

func RegisterGlobalFlags(flagset *flag.FlagSet, settings *GlobalSettings) {
	flagset.StringVar(&settings.KubeConfigPath, "kubeconfig", settings.KubeConfigPath, "path to kube config")
	flagset.StringVar(&settings.Namespace, "namespace", settings.Namespace, "preferred namespace for workloads that do not declare one")
	flagset.BoolVar(&settings.Debug, "debug", settings.Debug, "print debug timings to stderr")
}
