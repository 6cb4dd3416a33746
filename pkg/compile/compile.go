// Package compile turns a workload spec into its cluster resource set: the
// env and file Secrets, exactly one Deployment or StatefulSet, and an
// optional Service. Compilation is a pure transformation; re-running with
// identical input and the same selector identity is byte-identical.
package compile

import (
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/workload"
)

const (
	// LabelSelector carries the per-release random identity used to match
	// pods to their workload and service.
	LabelSelector = "workloads.gantry.dev/selector"

	// AnnotationChecksum is the pod template annotation digesting all secret
	// data, forcing a rollout whenever any secret payload changes even though
	// the Secret objects themselves are mutated in place.
	AnnotationChecksum = "checksum/config"
)

type Options struct {
	// SelectorID is the persisted pod-selector identity. When empty a fresh
	// one is generated; deploy engines must pass the persisted value or every
	// run would replace all pods.
	SelectorID string
}

type Outputs struct {
	Namespace string        `json:"namespace"`
	Kind      workload.Kind `json:"kind"`
	Workload  string        `json:"workload"`
	Service   string        `json:"service,omitempty"`
}

type Result struct {
	Secrets     []*corev1.Secret
	Deployment  *appsv1.Deployment
	StatefulSet *appsv1.StatefulSet
	Service     *corev1.Service
	SelectorID  string
	Checksum    string
	Outputs     Outputs
}

// Compile normalizes and validates the spec, then renders its resource set.
// Validation failures abort the whole transformation; no partial result is
// ever returned.
func Compile(spec workload.Spec, opts Options) (*Result, error) {
	spec = spec.Normalized()

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	selectorID := opts.SelectorID
	if selectorID == "" {
		selectorID = internal.RandomIdentity()
	}

	secrets := materializeSecrets(spec)
	checksum := checksumOf(secrets.payloads)

	service := renderService(spec, selectorID)
	template := renderPodTemplate(spec, selectorID, checksum, secrets)

	result := &Result{
		Secrets:    secrets.secrets,
		Service:    service,
		SelectorID: selectorID,
		Checksum:   checksum,
		Outputs: Outputs{
			Namespace: spec.Namespace,
			Kind:      spec.Kind(),
			Workload:  spec.Name,
		},
	}
	if service != nil {
		result.Outputs.Service = service.Name
	}

	switch spec.Kind() {
	case workload.KindStatefulSet:
		serviceName := spec.Name
		if service != nil {
			serviceName = service.Name
		}
		result.StatefulSet = renderStatefulSet(spec, template, selectorID, serviceName)
	default:
		result.Deployment = renderDeployment(spec, template, selectorID)
	}

	return result, nil
}

// Resources returns the compiled set as unstructured objects in apply order:
// secrets first, then the workload, then the service.
func (result Result) Resources() ([]*unstructured.Unstructured, error) {
	var typed []any
	for _, secret := range result.Secrets {
		typed = append(typed, secret)
	}
	if result.Deployment != nil {
		typed = append(typed, result.Deployment)
	}
	if result.StatefulSet != nil {
		typed = append(typed, result.StatefulSet)
	}
	if result.Service != nil {
		typed = append(typed, result.Service)
	}

	resources := make([]*unstructured.Unstructured, len(typed))
	for i, value := range typed {
		resource, err := toUnstructured(value)
		if err != nil {
			return nil, err
		}
		resources[i] = resource
	}

	return resources, nil
}

func toUnstructured(value any) (*unstructured.Unstructured, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	// Decoding through Unstructured keeps integral numbers as int64, the
	// same representation resources have after a state round-trip, so
	// deep-equality between compiled and persisted sets is meaningful.
	var resource unstructured.Unstructured
	if err := resource.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource: %w", err)
	}

	unstructured.RemoveNestedField(resource.Object, "status")
	unstructured.RemoveNestedField(resource.Object, "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(resource.Object, "spec", "template", "metadata", "creationTimestamp")

	return &resource, nil
}
