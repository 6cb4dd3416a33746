// Package gantry is the deploy engine around the compiler: it persists the
// one-time selector identity and the last-applied resource set per release,
// applies compiled resources with server-side apply, removes orphans, and
// optionally waits for rollout.
package gantry

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/internal/k8s"
	"github.com/gantry-dev/gantry/internal/text"
	"github.com/gantry-dev/gantry/pkg/compile"
	"github.com/gantry-dev/gantry/pkg/workload"
)

// cluster is the slice of the kubernetes client the commander uses. It lets
// tests drive deploys against an in-memory fake.
type cluster interface {
	GetState(ctx context.Context, release string) (*internal.State, error)
	UpsertState(ctx context.Context, state *internal.State) error
	DeleteState(ctx context.Context, release string) error
	EnsureNamespace(ctx context.Context, namespace string) error
	ApplyResources(ctx context.Context, resources []*unstructured.Unstructured, opts k8s.ApplyResourcesOpts) error
	RemoveOrphans(ctx context.Context, previous, current []*unstructured.Unstructured) ([]*unstructured.Unstructured, error)
	WaitForReadyMany(ctx context.Context, resources []*unstructured.Unstructured, opts k8s.WaitOptions) error
}

type Commander struct {
	cluster cluster
}

func FromKubeConfig(path string) (*Commander, error) {
	client, err := k8s.NewClientFromKubeConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize k8s client: %w", err)
	}
	return &Commander{client}, nil
}

type DeployParams struct {
	Release string
	Spec    workload.Spec

	// Namespace is the preferred namespace when the spec does not declare one.
	Namespace string

	SkipDryRun     bool
	ForceConflicts bool

	DiffOnly bool
	Color    bool
	Context  int

	Wait time.Duration
	Poll time.Duration
}

func (commander Commander) Deploy(ctx context.Context, params DeployParams) (*compile.Outputs, error) {
	defer internal.DebugTimer(ctx, "deploy")()

	if params.Release == "" {
		return nil, fmt.Errorf("release is required")
	}

	state, err := commander.cluster.GetState(ctx, params.Release)
	if err != nil {
		return nil, fmt.Errorf("failed to get release state: %w", err)
	}

	// The selector identity is generated exactly once per release. Reusing
	// the persisted value keeps pod selectors stable across deploys.
	identity := state.Identity
	if identity == "" {
		identity = internal.RandomIdentity()
	}

	spec := params.Spec
	spec.Namespace = cmp.Or(spec.Namespace, params.Namespace, "default")

	result, err := compile.Compile(spec, compile.Options{SelectorID: identity})
	if err != nil {
		return nil, fmt.Errorf("failed to compile workload: %w", err)
	}

	resources, err := result.Resources()
	if err != nil {
		return nil, fmt.Errorf("failed to convert resources: %w", err)
	}

	internal.AddManagedMetadata(resources, params.Release)

	if params.DiffOnly {
		current, err := text.ToYamlFile("current", internal.CanonicalObjectMap(state.Resources))
		if err != nil {
			return nil, err
		}
		next, err := text.ToYamlFile("next", internal.CanonicalObjectMap(resources))
		if err != nil {
			return nil, err
		}

		differ := func() text.DiffFunc {
			if params.Color {
				return text.DiffColorized
			}
			return text.Diff
		}()

		if _, err := fmt.Fprint(internal.Stdout(ctx), differ(current, next, params.Context)); err != nil {
			return nil, err
		}
		return &result.Outputs, nil
	}

	if reflect.DeepEqual(state.Resources, resources) {
		return &result.Outputs, internal.Warning("resources are the same as previous deploy: skipping")
	}

	if err := commander.cluster.EnsureNamespace(ctx, spec.Namespace); err != nil {
		return nil, fmt.Errorf("failed to ensure namespace: %w", err)
	}

	applyOpts := k8s.ApplyResourcesOpts{
		SkipDryRun:     params.SkipDryRun,
		ForceConflicts: params.ForceConflicts,
	}
	if err := commander.cluster.ApplyResources(ctx, resources, applyOpts); err != nil {
		return nil, fmt.Errorf("failed to apply resources: %w", err)
	}

	previous := state.Resources

	state.Identity = identity
	state.Namespace = spec.Namespace
	state.Workload = fmt.Sprintf("%s/%s", result.Outputs.Kind, result.Outputs.Workload)
	state.Resources = resources

	if err := commander.cluster.UpsertState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to persist release state: %w", err)
	}

	if _, err := commander.cluster.RemoveOrphans(ctx, previous, resources); err != nil {
		return nil, fmt.Errorf("failed to remove orphans: %w", err)
	}

	wait := params.Wait
	if wait == 0 && spec.WaitForRollout {
		wait = 5 * time.Minute
	}
	if wait > 0 {
		opts := k8s.WaitOptions{Timeout: wait, Poll: params.Poll}
		if err := commander.cluster.WaitForReadyMany(ctx, resources, opts); err != nil {
			return nil, fmt.Errorf("release did not become ready within wait period: %w", err)
		}
	}

	return &result.Outputs, nil
}

func (commander Commander) Remove(ctx context.Context, release string) error {
	defer internal.DebugTimer(ctx, "remove")()

	state, err := commander.cluster.GetState(ctx, release)
	if err != nil {
		return fmt.Errorf("failed to get release state: %w", err)
	}

	if _, err := commander.cluster.RemoveOrphans(ctx, state.Resources, nil); err != nil {
		return fmt.Errorf("failed to delete resources: %w", err)
	}

	if err := commander.cluster.DeleteState(ctx, release); err != nil {
		return fmt.Errorf("failed to delete release state: %w", err)
	}

	return nil
}
