package compile

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/workload"
)

// renderService emits a Service iff at least one port is declared. Absent or
// empty port maps silently skip Service creation.
func renderService(spec workload.Spec, selectorID string) *corev1.Service {
	if spec.Service == nil || len(spec.Service.Ports) == 0 {
		return nil
	}

	var ports []corev1.ServicePort
	for _, name := range internal.SortedKeys(spec.Service.Ports) {
		port := spec.Service.Ports[name]
		ports = append(ports, corev1.ServicePort{
			Name:       name,
			Port:       port.Port,
			TargetPort: intOrString(port.TargetPort),
			Protocol:   corev1.Protocol(port.Protocol),
		})
	}

	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        spec.Name,
			Namespace:   spec.Namespace,
			Annotations: spec.Annotations,
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{LabelSelector: selectorID},
			Ports:    ports,
		},
	}
}

func intOrString(value int32) intstr.IntOrString {
	return intstr.FromInt32(value)
}
