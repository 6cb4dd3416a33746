package workload

import (
	"path"

	"k8s.io/utils/ptr"
)

// Normalized returns a copy of the spec with every optional field resolved
// to its default: one replica, target ports equal to ports, TCP protocol,
// file source keys defaulting to the file's basename. Resource limit and
// request sub-fields are deliberately left absent rather than zeroed so the
// scheduler treats them as unset.
func (spec Spec) Normalized() Spec {
	if spec.Replicas == nil {
		spec.Replicas = ptr.To(int32(1))
	}

	if spec.Service != nil {
		ports := make(map[string]Port, len(spec.Service.Ports))
		for name, port := range spec.Service.Ports {
			if port.TargetPort == 0 {
				port.TargetPort = port.Port
			}
			if port.Protocol == "" {
				port.Protocol = "TCP"
			}
			ports[name] = port
		}
		spec.Service = &Service{Ports: ports}
	}

	containers := make(map[string]Container, len(spec.Containers))
	for key, container := range spec.Containers {
		files := make(map[string]File, len(container.Files))
		for mountPath, file := range container.Files {
			if file.Source != nil && file.Source.Key == "" {
				file.Source = &FileSource{Secret: file.Source.Secret, Key: path.Base(mountPath)}
			}
			files[mountPath] = file
		}
		container.Files = files
		containers[key] = container
	}
	spec.Containers = containers

	return spec
}
