package workload

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/davidmdm/x/xerr"

	"github.com/gantry-dev/gantry/internal"
)

// Validate checks the spec against its schema rules and returns every
// violation at once. Mutually exclusive fields populated together and mount
// paths colliding across containers are hard errors, never silent
// precedence.
func (spec Spec) Validate() error {
	var errs []error

	if spec.Name == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if len(spec.Containers) == 0 {
		errs = append(errs, fmt.Errorf("at least one container is required"))
	}
	if replicas := spec.Replicas; replicas != nil && *replicas < 0 {
		errs = append(errs, fmt.Errorf("replicas must not be negative"))
	}

	mounts := map[string][]string{}

	for _, key := range internal.SortedKeys(spec.Containers) {
		container := spec.Containers[key]

		if container.Image == "" {
			errs = append(errs, fmt.Errorf("container %q: image is required", key))
		}

		errs = append(errs, validateResources(key, container.Resources)...)
		errs = append(errs, validateProbe(key, "livenessProbe", container.LivenessProbe)...)
		errs = append(errs, validateProbe(key, "readinessProbe", container.ReadinessProbe)...)

		for _, path := range internal.SortedKeys(container.Files) {
			file := container.Files[path]
			mounts[path] = append(mounts[path], key)

			populated := 0
			if file.Source != nil {
				populated++
				if file.Source.Secret == "" {
					errs = append(errs, fmt.Errorf("container %q: file %q: source secret name is required", key, path))
				}
			}
			if file.Content != nil {
				populated++
			}
			if file.BinaryContent != nil {
				populated++
			}
			if populated != 1 {
				errs = append(errs, fmt.Errorf("container %q: file %q: exactly one of source, content, or binaryContent must be set", key, path))
			}
			if file.Mode != nil && (*file.Mode < 0 || *file.Mode > 0o777) {
				errs = append(errs, fmt.Errorf("container %q: file %q: mode must be between 0 and 0777", key, path))
			}
			if file.Expand && file.Content == nil {
				errs = append(errs, fmt.Errorf("container %q: file %q: expand requires inline text content", key, path))
			}
		}

		for _, path := range internal.SortedKeys(container.Volumes) {
			volume := container.Volumes[path]
			mounts[path] = append(mounts[path], key)

			if volume.Source == "" {
				errs = append(errs, fmt.Errorf("container %q: volume %q: source claim name is required", key, path))
			}
		}
	}

	for _, path := range internal.SortedKeys(mounts) {
		if containers := mounts[path]; len(containers) > 1 {
			errs = append(errs, fmt.Errorf("mount path %q is declared more than once (containers: %s)", path, strings.Join(containers, ", ")))
		}
	}

	if spec.Service != nil {
		for _, name := range internal.SortedKeys(spec.Service.Ports) {
			port := spec.Service.Ports[name]
			if port.Port < 1 || port.Port > 65535 {
				errs = append(errs, fmt.Errorf("service port %q: port must be between 1 and 65535", name))
			}
			if port.TargetPort < 0 || port.TargetPort > 65535 {
				errs = append(errs, fmt.Errorf("service port %q: targetPort must be between 1 and 65535", name))
			}
			switch port.Protocol {
			case "", "TCP", "UDP", "SCTP":
			default:
				errs = append(errs, fmt.Errorf("service port %q: unsupported protocol %q", name, port.Protocol))
			}
		}
	}

	return xerr.MultiErrOrderedFrom("invalid workload spec", errs...)
}

func validateResources(container string, resources Resources) []error {
	var errs []error
	for field, list := range map[string]*ResourceList{"limits": resources.Limits, "requests": resources.Requests} {
		if list == nil {
			continue
		}
		if list.CPU != "" {
			if _, err := resource.ParseQuantity(list.CPU); err != nil {
				errs = append(errs, fmt.Errorf("container %q: %s.cpu: %w", container, field, err))
			}
		}
		if list.Memory != "" {
			if _, err := resource.ParseQuantity(list.Memory); err != nil {
				errs = append(errs, fmt.Errorf("container %q: %s.memory: %w", container, field, err))
			}
		}
	}
	return errs
}

func validateProbe(container, field string, probe *Probe) []error {
	if probe == nil {
		return nil
	}

	var errs []error
	switch {
	case probe.HTTPGet != nil && probe.Exec != nil:
		errs = append(errs, fmt.Errorf("container %q: %s: httpGet and exec are mutually exclusive", container, field))
	case probe.HTTPGet == nil && probe.Exec == nil:
		errs = append(errs, fmt.Errorf("container %q: %s: one of httpGet or exec is required", container, field))
	}

	if httpGet := probe.HTTPGet; httpGet != nil {
		if httpGet.Path == "" {
			errs = append(errs, fmt.Errorf("container %q: %s: httpGet.path is required", container, field))
		}
		if httpGet.Port < 1 || httpGet.Port > 65535 {
			errs = append(errs, fmt.Errorf("container %q: %s: httpGet.port must be between 1 and 65535", container, field))
		}
		switch httpGet.Scheme {
		case "", "HTTP", "HTTPS":
		default:
			errs = append(errs, fmt.Errorf("container %q: %s: unsupported httpGet.scheme %q", container, field, httpGet.Scheme))
		}
	}
	if exec := probe.Exec; exec != nil && len(exec.Command) == 0 {
		errs = append(errs, fmt.Errorf("container %q: %s: exec.command must not be empty", container, field))
	}

	return errs
}
