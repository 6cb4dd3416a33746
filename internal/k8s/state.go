package k8s

import (
	"context"
	"encoding/json"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/gantry-dev/gantry/internal"
)

const (
	NSKubeSystem = "kube-system"
	KeyState     = "state"
	KeyRelease   = "release"
)

func stateName(release string) string { return gantry + "-" + release }

// GetState returns the persisted state for a release. A release that has
// never been deployed yields a zero state whose Identity is empty.
func (client Client) GetState(ctx context.Context, release string) (*internal.State, error) {
	secret, err := client.clientset.CoreV1().Secrets(NSKubeSystem).Get(ctx, stateName(release), metav1.GetOptions{})
	if kerrors.IsNotFound(err) {
		return &internal.State{Release: release}, nil
	}
	if err != nil {
		return nil, err
	}

	var state internal.State
	if err := json.Unmarshal(secret.Data[KeyState], &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (client Client) UpsertState(ctx context.Context, state *internal.State) error {
	name := stateName(state.Release)

	secrets := client.clientset.CoreV1().Secrets(NSKubeSystem)

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	secret, err := secrets.Get(ctx, name, metav1.GetOptions{})
	if kerrors.IsNotFound(err) {
		_, err := secrets.Create(
			ctx,
			&corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{
					Name:   name,
					Labels: map[string]string{internal.LabelKind: internal.KindState},
				},
				StringData: map[string]string{
					KeyRelease: state.Release,
					KeyState:   string(data),
				},
			},
			metav1.CreateOptions{FieldManager: gantry},
		)
		return err
	}

	if err != nil {
		return fmt.Errorf("failed to get state: %w", err)
	}

	if secret.StringData == nil {
		secret.StringData = make(map[string]string)
	}

	secret.StringData[KeyState] = string(data)

	_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{FieldManager: gantry})
	return err
}

func (client Client) GetAllStates(ctx context.Context) ([]internal.State, error) {
	secrets := client.clientset.CoreV1().Secrets(NSKubeSystem)

	list, err := secrets.List(ctx, metav1.ListOptions{LabelSelector: internal.LabelKind + "=" + internal.KindState})
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}

	results := make([]internal.State, len(list.Items))
	for i, secret := range list.Items {
		var state internal.State
		if err := json.Unmarshal(secret.Data[KeyState], &state); err != nil {
			return nil, fmt.Errorf("could not parse release %q state: %w", secret.Data[KeyRelease], err)
		}
		results[i] = state
	}

	return results, nil
}

func (client Client) DeleteState(ctx context.Context, release string) error {
	return client.clientset.CoreV1().
		Secrets(NSKubeSystem).
		Delete(ctx, stateName(release), metav1.DeleteOptions{})
}
