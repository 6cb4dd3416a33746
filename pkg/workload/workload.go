// Package workload defines the input schema for the gantry manifest compiler:
// a named set of containers with secret-backed variables, mounted files and
// volumes, probes, and optional service ports, deployed as a single rollout
// unit.
package workload

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Kind selects which rollout unit the compiler emits for a spec.
type Kind string

const (
	KindDeployment  Kind = "Deployment"
	KindStatefulSet Kind = "StatefulSet"
)

// AnnotationKind is the spec annotation that selects the workload kind.
// Absent or unrecognized values fall back to Deployment.
const AnnotationKind = "workloads.gantry.dev/kind"

type Spec struct {
	Name                  string               `json:"name" yaml:"name"`
	Namespace             string               `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Annotations           map[string]string    `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	AdditionalAnnotations map[string]string    `json:"additionalAnnotations,omitempty" yaml:"additionalAnnotations,omitempty"`
	ServiceAccount        string               `json:"serviceAccount,omitempty" yaml:"serviceAccount,omitempty"`
	Replicas              *int32               `json:"replicas,omitempty" yaml:"replicas,omitempty"`
	Containers            map[string]Container `json:"containers" yaml:"containers"`
	Service               *Service             `json:"service,omitempty" yaml:"service,omitempty"`
	WaitForRollout        bool                 `json:"waitForRollout,omitempty" yaml:"waitForRollout,omitempty"`
}

// Kind resolves the workload kind from the spec's annotations.
func (spec Spec) Kind() Kind {
	if Kind(spec.Annotations[AnnotationKind]) == KindStatefulSet {
		return KindStatefulSet
	}
	return KindDeployment
}

type Container struct {
	Image          string            `json:"image" yaml:"image"`
	Command        []string          `json:"command,omitempty" yaml:"command,omitempty"`
	Args           []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Variables      map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
	Files          map[string]File   `json:"files,omitempty" yaml:"files,omitempty"`
	Volumes        map[string]Volume `json:"volumes,omitempty" yaml:"volumes,omitempty"`
	Resources      Resources         `json:"resources,omitempty" yaml:"resources,omitempty"`
	LivenessProbe  *Probe            `json:"livenessProbe,omitempty" yaml:"livenessProbe,omitempty"`
	ReadinessProbe *Probe            `json:"readinessProbe,omitempty" yaml:"readinessProbe,omitempty"`
}

// File is either a reference to a pre-existing secret (source) or inline
// content. Exactly one of source, content, or binaryContent must be set;
// only inline content is materialized as a Secret by the compiler.
type File struct {
	Source        *FileSource `json:"source,omitempty" yaml:"source,omitempty"`
	Content       *string     `json:"content,omitempty" yaml:"content,omitempty"`
	BinaryContent []byte      `json:"binaryContent,omitempty" yaml:"binaryContent,omitempty"`
	Mode          *int32      `json:"mode,omitempty" yaml:"mode,omitempty"`
	Expand        bool        `json:"expand,omitempty" yaml:"expand,omitempty"`
}

type FileSource struct {
	Secret string `json:"secret" yaml:"secret"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
}

// Volume references an external persistent volume claim. It is always
// mounted via a claim reference and never materialized.
type Volume struct {
	Source   string `json:"source" yaml:"source"`
	SubPath  string `json:"subPath,omitempty" yaml:"subPath,omitempty"`
	ReadOnly bool   `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
}

type Resources struct {
	Limits   *ResourceList `json:"limits,omitempty" yaml:"limits,omitempty"`
	Requests *ResourceList `json:"requests,omitempty" yaml:"requests,omitempty"`
}

type ResourceList struct {
	CPU    string `json:"cpu,omitempty" yaml:"cpu,omitempty"`
	Memory string `json:"memory,omitempty" yaml:"memory,omitempty"`
}

// Probe carries exactly one of an http-get or exec handler.
type Probe struct {
	HTTPGet *HTTPGetAction `json:"httpGet,omitempty" yaml:"httpGet,omitempty"`
	Exec    *ExecAction    `json:"exec,omitempty" yaml:"exec,omitempty"`

	InitialDelaySeconds int32 `json:"initialDelaySeconds,omitempty" yaml:"initialDelaySeconds,omitempty"`
	PeriodSeconds       int32 `json:"periodSeconds,omitempty" yaml:"periodSeconds,omitempty"`
	TimeoutSeconds      int32 `json:"timeoutSeconds,omitempty" yaml:"timeoutSeconds,omitempty"`
	SuccessThreshold    int32 `json:"successThreshold,omitempty" yaml:"successThreshold,omitempty"`
	FailureThreshold    int32 `json:"failureThreshold,omitempty" yaml:"failureThreshold,omitempty"`
}

type HTTPGetAction struct {
	Path    string            `json:"path" yaml:"path"`
	Port    int32             `json:"port" yaml:"port"`
	Host    string            `json:"host,omitempty" yaml:"host,omitempty"`
	Scheme  string            `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

type ExecAction struct {
	Command []string `json:"command" yaml:"command"`
}

type Service struct {
	Ports map[string]Port `json:"ports,omitempty" yaml:"ports,omitempty"`
}

type Port struct {
	Port       int32  `json:"port" yaml:"port"`
	TargetPort int32  `json:"targetPort,omitempty" yaml:"targetPort,omitempty"`
	Protocol   string `json:"protocol,omitempty" yaml:"protocol,omitempty"`
}

// Decode reads a single yaml (or json) document into a Spec. Unknown fields
// are rejected so typos in workload files surface instead of silently
// dropping configuration.
func Decode(r io.Reader) (Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return spec, fmt.Errorf("failed to decode workload spec: %w", err)
	}
	return spec, nil
}
