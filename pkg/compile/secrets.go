package compile

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/gantry-dev/gantry/internal"
	"github.com/gantry-dev/gantry/pkg/workload"
)

// secretPayload tags one materialized secret's data with a stable composite
// key so the checksum is invariant to container and file ordering.
type secretPayload struct {
	key  string
	data map[string][]byte
}

// fileMount records where a materialized file secret gets mounted.
type fileMount struct {
	container  string
	mountPath  string
	secretName string
	key        string
	mode       *int32
}

type materialized struct {
	secrets        []*corev1.Secret
	payloads       []secretPayload
	envByContainer map[string]string
	fileMounts     []fileMount
}

// materializeSecrets derives one env Secret per container with variables and
// one single-key Secret per file with inline content. Files referencing an
// external secret are mounted but never materialized.
func materializeSecrets(spec workload.Spec) materialized {
	result := materialized{envByContainer: map[string]string{}}

	for _, key := range internal.SortedKeys(spec.Containers) {
		container := spec.Containers[key]

		if len(container.Variables) > 0 {
			name := envSecretName(spec.Name, key)
			result.envByContainer[key] = name

			result.secrets = append(result.secrets, &corev1.Secret{
				TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: spec.Namespace},
				Type:       corev1.SecretTypeOpaque,
				StringData: container.Variables,
			})

			data := make(map[string][]byte, len(container.Variables))
			for variable, value := range container.Variables {
				data[variable] = []byte(value)
			}
			result.payloads = append(result.payloads, secretPayload{key: "env-" + key, data: data})
		}

		for _, mountPath := range internal.SortedKeys(container.Files) {
			file := container.Files[mountPath]

			if file.Source != nil {
				continue
			}

			name := fileSecretName(spec.Name, key, mountPath)
			fileKey := path.Base(mountPath)

			secret := &corev1.Secret{
				TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: spec.Namespace},
				Type:       corev1.SecretTypeOpaque,
			}

			var content []byte
			if file.BinaryContent != nil {
				content = file.BinaryContent
				secret.Data = map[string][]byte{fileKey: content}
			} else {
				text := *file.Content
				if file.Expand {
					text = os.Expand(text, func(name string) string { return container.Variables[name] })
				}
				content = []byte(text)
				secret.StringData = map[string]string{fileKey: text}
			}

			result.secrets = append(result.secrets, secret)
			result.payloads = append(result.payloads, secretPayload{
				key:  fmt.Sprintf("file-%s-%s", key, mountPath),
				data: map[string][]byte{fileKey: content},
			})
			result.fileMounts = append(result.fileMounts, fileMount{
				container:  key,
				mountPath:  mountPath,
				secretName: name,
				key:        fileKey,
				mode:       file.Mode,
			})
		}
	}

	return result
}

func envSecretName(name, container string) string {
	return fmt.Sprintf("%s-%s-env", name, container)
}

// fileSecretName hashes the full mount path into the name so that two files
// in different directories with the same basename never collide.
func fileSecretName(name, container, mountPath string) string {
	return fmt.Sprintf("%s-%s-%s", name, container, pathHash(mountPath))
}

func pathHash(mountPath string) string {
	sum := sha256.Sum256([]byte(mountPath))
	return fmt.Sprintf("%x", sum[:4])
}
