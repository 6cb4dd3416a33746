package compile

import (
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/utils/ptr"

	"github.com/gantry-dev/gantry/pkg/workload"
)

func webSpec() workload.Spec {
	return workload.Spec{
		Name:      "web",
		Namespace: "apps",
		Containers: map[string]workload.Container{
			"web": {
				Image:     "nginx:latest",
				Variables: map[string]string{"FOO": "bar"},
			},
		},
	}
}

func TestCompileDeployment(t *testing.T) {
	result, err := Compile(webSpec(), Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	require.NotNil(t, result.Deployment)
	require.Nil(t, result.StatefulSet)
	require.Nil(t, result.Service)

	deployment := result.Deployment
	require.Equal(t, "web", deployment.Name)
	require.Equal(t, "apps", deployment.Namespace)
	require.Equal(t, ptr.To(int32(1)), deployment.Spec.Replicas)

	selector := map[string]string{LabelSelector: "c0ffee4badc0ffee"}
	require.Equal(t, selector, deployment.Spec.Selector.MatchLabels)
	require.Equal(t, selector, deployment.Spec.Template.Labels)

	require.Equal(t, result.Checksum, deployment.Spec.Template.Annotations[AnnotationChecksum])

	require.Len(t, result.Secrets, 1)
	secret := result.Secrets[0]
	require.Equal(t, "web-web-env", secret.Name)
	require.Equal(t, "apps", secret.Namespace)
	require.Equal(t, map[string]string{"FOO": "bar"}, secret.StringData)

	require.Len(t, deployment.Spec.Template.Spec.Containers, 1)
	container := deployment.Spec.Template.Spec.Containers[0]
	require.Equal(t, "web", container.Name)
	require.Equal(t, []corev1.EnvFromSource{
		{SecretRef: &corev1.SecretEnvSource{LocalObjectReference: corev1.LocalObjectReference{Name: "web-web-env"}}},
	}, container.EnvFrom)

	require.Equal(t, Outputs{Namespace: "apps", Kind: workload.KindDeployment, Workload: "web"}, result.Outputs)
}

func TestCompileStatefulSet(t *testing.T) {
	spec := webSpec()
	spec.Annotations = map[string]string{workload.AnnotationKind: "StatefulSet"}
	spec.Service = &workload.Service{Ports: map[string]workload.Port{"http": {Port: 8080}}}

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	require.Nil(t, result.Deployment)
	require.NotNil(t, result.StatefulSet)
	require.Equal(t, "web", result.StatefulSet.Spec.ServiceName)

	require.NotNil(t, result.Service)
	require.Equal(t, workload.KindStatefulSet, result.Outputs.Kind)
	require.Equal(t, "web", result.Outputs.Service)
}

func TestCompileServiceDefaults(t *testing.T) {
	spec := webSpec()
	spec.Service = &workload.Service{Ports: map[string]workload.Port{
		"http":    {Port: 8080},
		"metrics": {Port: 9090, TargetPort: 9999, Protocol: "UDP"},
	}}

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	service := result.Service
	require.NotNil(t, service)
	require.Equal(t, map[string]string{LabelSelector: "c0ffee4badc0ffee"}, service.Spec.Selector)

	require.Len(t, service.Spec.Ports, 2)

	http := service.Spec.Ports[0]
	require.Equal(t, "http", http.Name)
	require.Equal(t, int32(8080), http.Port)
	require.Equal(t, int32(8080), http.TargetPort.IntVal)
	require.Equal(t, corev1.ProtocolTCP, http.Protocol)

	metrics := service.Spec.Ports[1]
	require.Equal(t, "metrics", metrics.Name)
	require.Equal(t, int32(9999), metrics.TargetPort.IntVal)
	require.Equal(t, corev1.ProtocolUDP, metrics.Protocol)
}

func TestCompileNoService(t *testing.T) {
	spec := webSpec()
	spec.Service = &workload.Service{}

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)
	require.Nil(t, result.Service)
	require.Empty(t, result.Outputs.Service)
}

func TestCompileFiles(t *testing.T) {
	spec := workload.Spec{
		Name:      "web",
		Namespace: "apps",
		Containers: map[string]workload.Container{
			"web": {
				Image:     "nginx:latest",
				Variables: map[string]string{"HOST": "example.com"},
				Files: map[string]workload.File{
					"/etc/nginx/nginx.conf": {Content: ptr.To("server_name ${HOST};"), Expand: true},
					"/etc/nginx/cert.der":   {BinaryContent: []byte{0x30, 0x82}, Mode: ptr.To(int32(0o400))},
					"/etc/nginx/tls.key":    {Source: &workload.FileSource{Secret: "web-tls", Key: "tls.key"}},
				},
			},
		},
	}

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	// one env secret plus one secret per inline file; the sourced file
	// references an existing secret and is never materialized
	require.Len(t, result.Secrets, 3)

	var conf, cert *corev1.Secret
	for _, secret := range result.Secrets[1:] {
		switch {
		case secret.StringData != nil:
			conf = secret
		default:
			cert = secret
		}
	}

	require.NotNil(t, conf)
	require.Equal(t, map[string]string{"nginx.conf": "server_name example.com;"}, conf.StringData)

	require.NotNil(t, cert)
	require.Equal(t, map[string][]byte{"cert.der": {0x30, 0x82}}, cert.Data)

	container := result.Deployment.Spec.Template.Spec.Containers[0]
	require.Len(t, container.VolumeMounts, 3)
	for _, mount := range container.VolumeMounts {
		require.True(t, mount.ReadOnly)
	}

	volumes := result.Deployment.Spec.Template.Spec.Volumes
	require.Len(t, volumes, 3)

	for _, volume := range volumes {
		require.NotNil(t, volume.Secret)
		switch volume.Secret.SecretName {
		case "web-tls":
		case cert.Name:
			require.Equal(t, ptr.To(int32(0o400)), volume.Secret.DefaultMode)
		case conf.Name:
		default:
			t.Fatalf("unexpected secret volume: %s", volume.Secret.SecretName)
		}
	}
}

func TestCompileVolumes(t *testing.T) {
	spec := workload.Spec{
		Name: "db",
		Containers: map[string]workload.Container{
			"postgres": {
				Image: "postgres:16",
				Volumes: map[string]workload.Volume{
					"/var/lib/postgresql/data": {Source: "pgdata"},
					"/backups":                 {Source: "pgdata", SubPath: "backups", ReadOnly: true},
				},
			},
		},
	}

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	container := result.Deployment.Spec.Template.Spec.Containers[0]
	require.Len(t, container.VolumeMounts, 2)

	backups := container.VolumeMounts[0]
	require.Equal(t, "pvc-pgdata", backups.Name)
	require.Equal(t, "/backups", backups.MountPath)
	require.Equal(t, "backups", backups.SubPath)
	require.True(t, backups.ReadOnly)

	data := container.VolumeMounts[1]
	require.Equal(t, "pvc-pgdata", data.Name)
	require.False(t, data.ReadOnly)

	// the shared claim is declared exactly once
	volumes := result.Deployment.Spec.Template.Spec.Volumes
	require.Len(t, volumes, 1)
	require.Equal(t, "pvc-pgdata", volumes[0].Name)
	require.Equal(t, "pgdata", volumes[0].PersistentVolumeClaim.ClaimName)
}

func TestCompileSecurityDefaults(t *testing.T) {
	result, err := Compile(webSpec(), Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	pod := result.Deployment.Spec.Template.Spec
	require.Equal(t, ptr.To(true), pod.SecurityContext.RunAsNonRoot)
	require.Equal(t, corev1.SeccompProfileTypeRuntimeDefault, pod.SecurityContext.SeccompProfile.Type)

	container := pod.Containers[0]
	require.Equal(t, ptr.To(false), container.SecurityContext.AllowPrivilegeEscalation)
	require.Equal(t, ptr.To(true), container.SecurityContext.ReadOnlyRootFilesystem)
}

func TestCompileResourcesAndProbes(t *testing.T) {
	spec := webSpec()
	container := spec.Containers["web"]
	container.Resources = workload.Resources{
		Limits:   &workload.ResourceList{CPU: "500m", Memory: "256Mi"},
		Requests: &workload.ResourceList{CPU: "100m"},
	}
	container.LivenessProbe = &workload.Probe{
		HTTPGet:             &workload.HTTPGetAction{Path: "/healthz", Port: 8080, Headers: map[string]string{"X-Probe": "gantry"}},
		InitialDelaySeconds: 5,
		PeriodSeconds:       10,
	}
	container.ReadinessProbe = &workload.Probe{
		Exec: &workload.ExecAction{Command: []string{"pg_isready"}},
	}
	spec.Containers["web"] = container

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	rendered := result.Deployment.Spec.Template.Spec.Containers[0]

	require.Equal(t, resource.MustParse("500m"), rendered.Resources.Limits[corev1.ResourceCPU])
	require.Equal(t, resource.MustParse("256Mi"), rendered.Resources.Limits[corev1.ResourceMemory])
	require.Equal(t, resource.MustParse("100m"), rendered.Resources.Requests[corev1.ResourceCPU])
	require.NotContains(t, rendered.Resources.Requests, corev1.ResourceMemory)

	liveness := rendered.LivenessProbe
	require.Equal(t, "/healthz", liveness.HTTPGet.Path)
	require.Equal(t, int32(8080), liveness.HTTPGet.Port.IntVal)
	require.Equal(t, []corev1.HTTPHeader{{Name: "X-Probe", Value: "gantry"}}, liveness.HTTPGet.HTTPHeaders)
	require.Equal(t, int32(5), liveness.InitialDelaySeconds)

	require.Equal(t, []string{"pg_isready"}, rendered.ReadinessProbe.Exec.Command)
}

func TestCompileGeneratesIdentity(t *testing.T) {
	result, err := Compile(webSpec(), Options{})
	require.NoError(t, err)
	require.Len(t, result.SelectorID, 16)
	require.Equal(t, result.SelectorID, result.Deployment.Spec.Selector.MatchLabels[LabelSelector])
}

func TestCompileInvalidSpec(t *testing.T) {
	_, err := Compile(workload.Spec{}, Options{})
	require.ErrorContains(t, err, "invalid workload spec")
	require.ErrorContains(t, err, "name is required")
}

func TestCompileDeterminism(t *testing.T) {
	spec := workload.Spec{
		Name:      "web",
		Namespace: "apps",
		Containers: map[string]workload.Container{
			"web": {
				Image:     "nginx:latest",
				Variables: map[string]string{"FOO": "bar", "BAZ": "qux", "ALPHA": "beta"},
				Files: map[string]workload.File{
					"/etc/app/one": {Content: ptr.To("one")},
					"/etc/app/two": {Content: ptr.To("two")},
				},
			},
			"sidecar": {
				Image:     "envoy:latest",
				Variables: map[string]string{"PORT": "9901"},
			},
		},
		Service: &workload.Service{Ports: map[string]workload.Port{
			"http": {Port: 8080},
			"grpc": {Port: 9090},
		}},
	}

	first, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	firstResources, err := first.Resources()
	require.NoError(t, err)

	for range 10 {
		next, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
		require.NoError(t, err)

		require.Equal(t, first.Checksum, next.Checksum)

		nextResources, err := next.Resources()
		require.NoError(t, err)
		require.Equal(t, firstResources, nextResources)
	}
}

func TestChecksum(t *testing.T) {
	payloads := []secretPayload{
		{key: "env-web", data: map[string][]byte{"FOO": []byte("bar")}},
		{key: "file-web-/etc/app/config", data: map[string][]byte{"config": []byte("hello")}},
	}

	reordered := []secretPayload{payloads[1], payloads[0]}
	require.Equal(t, checksumOf(payloads), checksumOf(reordered))

	changed := []secretPayload{
		{key: "env-web", data: map[string][]byte{"FOO": []byte("baz")}},
		payloads[1],
	}
	require.NotEqual(t, checksumOf(payloads), checksumOf(changed))

	// field boundaries are length prefixed: shifting a byte between the
	// data key and its value must not collide
	a := []secretPayload{{key: "env-web", data: map[string][]byte{"AB": []byte("C")}}}
	b := []secretPayload{{key: "env-web", data: map[string][]byte{"A": []byte("BC")}}}
	require.NotEqual(t, checksumOf(a), checksumOf(b))
}

func TestChecksumDrivesRollout(t *testing.T) {
	spec := webSpec()

	first, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	spec.Containers["web"].Variables["FOO"] = "changed"

	next, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	require.NotEqual(t,
		first.Deployment.Spec.Template.Annotations[AnnotationChecksum],
		next.Deployment.Spec.Template.Annotations[AnnotationChecksum],
	)
}

func TestResourcesApplyOrder(t *testing.T) {
	spec := webSpec()
	spec.Service = &workload.Service{Ports: map[string]workload.Port{"http": {Port: 8080}}}

	result, err := Compile(spec, Options{SelectorID: "c0ffee4badc0ffee"})
	require.NoError(t, err)

	resources, err := result.Resources()
	require.NoError(t, err)

	require.Len(t, resources, 3)
	require.Equal(t, "Secret", resources[0].GetKind())
	require.Equal(t, "Deployment", resources[1].GetKind())
	require.Equal(t, "Service", resources[2].GetKind())

	for _, item := range resources {
		_, found, err := unstructured.NestedFieldNoCopy(item.Object, "status")
		require.NoError(t, err)
		require.False(t, found)
	}
}
