package compile

import (
	"fmt"
	"maps"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/workload"
)

func renderPodTemplate(spec workload.Spec, selectorID, checksum string, secrets materialized) corev1.PodTemplateSpec {
	annotations := map[string]string{}
	maps.Copy(annotations, spec.Annotations)
	maps.Copy(annotations, spec.AdditionalAnnotations)
	annotations[AnnotationChecksum] = checksum

	var containers []corev1.Container
	for _, key := range internal.SortedKeys(spec.Containers) {
		containers = append(containers, renderContainer(key, spec.Containers[key], secrets))
	}

	return corev1.PodTemplateSpec{
		ObjectMeta: metav1.ObjectMeta{
			Labels:      map[string]string{LabelSelector: selectorID},
			Annotations: annotations,
		},
		Spec: corev1.PodSpec{
			ServiceAccountName: spec.ServiceAccount,
			SecurityContext: &corev1.PodSecurityContext{
				RunAsNonRoot: ptr.To(true),
				SeccompProfile: &corev1.SeccompProfile{
					Type: corev1.SeccompProfileTypeRuntimeDefault,
				},
			},
			Containers: containers,
			Volumes:    renderVolumes(spec, secrets),
		},
	}
}

func renderContainer(key string, container workload.Container, secrets materialized) corev1.Container {
	result := corev1.Container{
		Name:    key,
		Image:   container.Image,
		Command: container.Command,
		Args:    container.Args,
		SecurityContext: &corev1.SecurityContext{
			AllowPrivilegeEscalation: ptr.To(false),
			ReadOnlyRootFilesystem:   ptr.To(true),
		},
		Resources:      renderResources(container.Resources),
		LivenessProbe:  renderProbe(container.LivenessProbe),
		ReadinessProbe: renderProbe(container.ReadinessProbe),
	}

	if name := secrets.envByContainer[key]; name != "" {
		result.EnvFrom = []corev1.EnvFromSource{
			{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: name}}},
		}
	}

	for _, mountPath := range internal.SortedKeys(container.Files) {
		file := container.Files[mountPath]
		if file.Source != nil {
			result.VolumeMounts = append(result.VolumeMounts, corev1.VolumeMount{
				Name:      sourceVolumeName(key, mountPath),
				MountPath: mountPath,
				SubPath:   file.Source.Key,
				ReadOnly:  true,
			})
			continue
		}

		mount, _ := internal.Find(secrets.fileMounts, func(mount fileMount) bool {
			return mount.container == key && mount.mountPath == mountPath
		})
		result.VolumeMounts = append(result.VolumeMounts, corev1.VolumeMount{
			Name:      fileVolumeName(key, mountPath),
			MountPath: mountPath,
			SubPath:   mount.key,
			ReadOnly:  true,
		})
	}

	for _, mountPath := range internal.SortedKeys(container.Volumes) {
		volume := container.Volumes[mountPath]
		result.VolumeMounts = append(result.VolumeMounts, corev1.VolumeMount{
			Name:      claimVolumeName(volume.Source),
			MountPath: mountPath,
			SubPath:   volume.SubPath,
			ReadOnly:  volume.ReadOnly,
		})
	}

	return result
}

// renderVolumes declares pod volumes once per materialized file secret, once
// per external file source, and once per unique claim across all containers.
func renderVolumes(spec workload.Spec, secrets materialized) []corev1.Volume {
	var volumes []corev1.Volume

	for _, mount := range secrets.fileMounts {
		volumes = append(volumes, corev1.Volume{
			Name: fileVolumeName(mount.container, mount.mountPath),
			VolumeSource: corev1.VolumeSource{
				Secret: &corev1.SecretVolumeSource{
					SecretName:  mount.secretName,
					DefaultMode: mount.mode,
				},
			},
		})
	}

	claims := map[string]struct{}{}

	for _, key := range internal.SortedKeys(spec.Containers) {
		container := spec.Containers[key]

		for _, mountPath := range internal.SortedKeys(container.Files) {
			file := container.Files[mountPath]
			if file.Source == nil {
				continue
			}
			volumes = append(volumes, corev1.Volume{
				Name: sourceVolumeName(key, mountPath),
				VolumeSource: corev1.VolumeSource{
					Secret: &corev1.SecretVolumeSource{
						SecretName:  file.Source.Secret,
						DefaultMode: file.Mode,
					},
				},
			})
		}

		for _, mountPath := range internal.SortedKeys(container.Volumes) {
			claims[container.Volumes[mountPath].Source] = struct{}{}
		}
	}

	for _, claim := range internal.SortedKeys(claims) {
		volumes = append(volumes, corev1.Volume{
			Name: claimVolumeName(claim),
			VolumeSource: corev1.VolumeSource{
				PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: claim},
			},
		})
	}

	return volumes
}

func renderResources(resources workload.Resources) corev1.ResourceRequirements {
	return corev1.ResourceRequirements{
		Limits:   renderResourceList(resources.Limits),
		Requests: renderResourceList(resources.Requests),
	}
}

func renderResourceList(list *workload.ResourceList) corev1.ResourceList {
	if list == nil {
		return nil
	}

	result := corev1.ResourceList{}
	if list.CPU != "" {
		result[corev1.ResourceCPU] = resource.MustParse(list.CPU)
	}
	if list.Memory != "" {
		result[corev1.ResourceMemory] = resource.MustParse(list.Memory)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func renderProbe(probe *workload.Probe) *corev1.Probe {
	if probe == nil {
		return nil
	}

	result := &corev1.Probe{
		InitialDelaySeconds: probe.InitialDelaySeconds,
		PeriodSeconds:       probe.PeriodSeconds,
		TimeoutSeconds:      probe.TimeoutSeconds,
		SuccessThreshold:    probe.SuccessThreshold,
		FailureThreshold:    probe.FailureThreshold,
	}

	if httpGet := probe.HTTPGet; httpGet != nil {
		action := &corev1.HTTPGetAction{
			Path:   httpGet.Path,
			Port:   intOrString(httpGet.Port),
			Host:   httpGet.Host,
			Scheme: corev1.URIScheme(httpGet.Scheme),
		}
		for _, name := range internal.SortedKeys(httpGet.Headers) {
			action.HTTPHeaders = append(action.HTTPHeaders, corev1.HTTPHeader{Name: name, Value: httpGet.Headers[name]})
		}
		result.ProbeHandler = corev1.ProbeHandler{HTTPGet: action}
		return result
	}

	result.ProbeHandler = corev1.ProbeHandler{Exec: &corev1.ExecAction{Command: probe.Exec.Command}}
	return result
}

func renderDeployment(spec workload.Spec, template corev1.PodTemplateSpec, selectorID string) *appsv1.Deployment {
	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        spec.Name,
			Namespace:   spec.Namespace,
			Annotations: spec.Annotations,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: spec.Replicas,
			Selector: &metav1.LabelSelector{MatchLabels: map[string]string{LabelSelector: selectorID}},
			Template: template,
		},
	}
}

func renderStatefulSet(spec workload.Spec, template corev1.PodTemplateSpec, selectorID, serviceName string) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        spec.Name,
			Namespace:   spec.Namespace,
			Annotations: spec.Annotations,
		},
		Spec: appsv1.StatefulSetSpec{
			ServiceName: serviceName,
			Replicas:    spec.Replicas,
			Selector:    &metav1.LabelSelector{MatchLabels: map[string]string{LabelSelector: selectorID}},
			Template:    template,
		},
	}
}

func fileVolumeName(container, mountPath string) string {
	return fmt.Sprintf("file-%s-%s", container, pathHash(mountPath))
}

func sourceVolumeName(container, mountPath string) string {
	return fmt.Sprintf("src-%s-%s", container, pathHash(mountPath))
}

func claimVolumeName(claim string) string {
	return "pvc-" + claim
}
