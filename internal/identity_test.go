package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestRandomIdentity(t *testing.T) {
	first := RandomIdentity()
	require.Len(t, first, 16)
	require.Regexp(t, "^[0-9a-f]{16}$", first)
	require.NotEqual(t, first, RandomIdentity())
}

func TestCanonical(t *testing.T) {
	cases := []struct {
		Name     string
		Resource map[string]any
		Expected string
	}{
		{
			Name: "namespaced core resource",
			Resource: map[string]any{
				"apiVersion": "v1",
				"kind":       "Secret",
				"metadata":   map[string]any{"name": "web-web-env", "namespace": "apps"},
			},
			Expected: "apps.core.v1.secret.web-web-env",
		},
		{
			Name: "grouped resource",
			Resource: map[string]any{
				"apiVersion": "apps/v1",
				"kind":       "Deployment",
				"metadata":   map[string]any{"name": "web", "namespace": "apps"},
			},
			Expected: "apps.apps.v1.deployment.web",
		},
		{
			Name: "cluster scoped",
			Resource: map[string]any{
				"apiVersion": "v1",
				"kind":       "Namespace",
				"metadata":   map[string]any{"name": "apps"},
			},
			Expected: "_.core.v1.namespace.apps",
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			require.Equal(t, tc.Expected, Canonical(&unstructured.Unstructured{Object: tc.Resource}))
		})
	}
}

func TestAddManagedMetadata(t *testing.T) {
	resource := &unstructured.Unstructured{Object: map[string]any{
		"apiVersion": "v1",
		"kind":       "Secret",
		"metadata": map[string]any{
			"name":   "web-web-env",
			"labels": map[string]any{"team": "platform"},
		},
	}}

	AddManagedMetadata([]*unstructured.Unstructured{resource}, "my-app")

	labels := resource.GetLabels()
	require.Equal(t, "gantry", labels["app.kubernetes.io/managed-by"])
	require.Equal(t, "my-app", labels["app.kubernetes.io/gantry-release"])
	require.Equal(t, "platform", labels["team"])
}

func TestSortedKeys(t *testing.T) {
	require.Equal(t,
		[]string{"a", "b", "c"},
		SortedKeys(map[string]int{"c": 3, "a": 1, "b": 2}),
	)
	require.Empty(t, SortedKeys(map[string]int{}))
}
