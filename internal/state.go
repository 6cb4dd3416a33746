package internal

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// State is the engine-persisted record for a release: the one-time selector
// identity and the resource set produced by the last successful deploy.
type State struct {
	Release   string                       `json:"release"`
	Namespace string                       `json:"namespace"`
	Identity  string                       `json:"identity"`
	Workload  string                       `json:"workload,omitempty"`
	Resources []*unstructured.Unstructured `json:"resources,omitempty"`
}

func (state State) IsNew() bool { return state.Identity == "" }
