package kube

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/labels"
	"github.com/imamik/ledgerlab/internal/util/ptr"
)

const (
	// SigningProxyPort is where a signing proxy serves its validator.
	SigningProxyPort = 6186

	containerDataDir = "/opt/ledger/data"
	tokenSecretName  = "ledgerlab-secret-store-token"
	tokenSecretKey   = "token"
)

// SpawnInstance starts the workload for cfg on node and waits until it is
// ready. Instances use host networking and share the node's internal IP.
func (p *Provisioner) SpawnInstance(ctx context.Context, node provisioning.NodeHandle, cfg provisioning.RoleConfig) (provisioning.Instance, error) {
	name := provisioning.SlotName(cfg)

	pod, err := p.podFor(node, cfg)
	if err != nil {
		return provisioning.Instance{}, provisioning.ConfigurationError("", name, err)
	}

	switch cfg.(type) {
	case provisioning.SigningProxyConfig, provisioning.SecretStoreConfig:
		if err := p.ensureTokenSecret(ctx); err != nil {
			return provisioning.Instance{}, err
		}
	}

	if _, err := p.clientset.CoreV1().Pods(p.kube.Namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return provisioning.Instance{}, fmt.Errorf("failed to create pod %s: %w", name, err)
	}
	p.log.V(1).Info("Created pod", "pod", name, "node", node.Host, "image", pod.Spec.Containers[0].Image)

	if err := p.waitForPod(ctx, name); err != nil {
		return provisioning.Instance{}, err
	}

	return provisioning.Instance{
		Role:    cfg.Role(),
		Index:   cfg.RoleIndex(),
		Name:    name,
		Node:    node,
		Address: node.InternalAddress,
		Image:   pod.Spec.Containers[0].Image,
	}, nil
}

// podFor builds the pod manifest for a workload.
func (p *Provisioner) podFor(node provisioning.NodeHandle, cfg provisioning.RoleConfig) (*corev1.Pod, error) {
	name := provisioning.SlotName(cfg)
	container := corev1.Container{
		Name:         name,
		VolumeMounts: []corev1.VolumeMount{{Name: "data", MountPath: containerDataDir}},
	}
	volumes := []corev1.Volume{hostPathVolume("data", p.dataDir(name))}

	switch c := cfg.(type) {
	case provisioning.ValidatorConfig:
		genesisDir := path.Dir(p.settings.GenesisDestPath)
		container.Image = imageRef(p.kube.Images.Validator, c.ImageTag)
		container.Env = []corev1.EnvVar{
			env("LEDGER_NODE_INDEX", strconv.Itoa(c.Index)),
			env("LEDGER_NUM_VALIDATORS", strconv.Itoa(c.NumValidators)),
			env("LEDGER_NUM_FULLNODES", strconv.Itoa(c.NumFullnodes)),
			env("LEDGER_SEED_PEER_IP", c.SeedPeer),
			env("LEDGER_OVERRIDES", strings.Join(c.Overrides, ",")),
			env("LEDGER_GENESIS_PATH", p.settings.GenesisDestPath),
		}
		if c.EnableSigningProxy {
			if c.SigningProxyAddress == "" {
				return nil, fmt.Errorf("validator %d enables the signing proxy without an address", c.Index)
			}
			container.Env = append(container.Env,
				env("LEDGER_SAFETY_RULES_ADDR", fmt.Sprintf("%s:%d", c.SigningProxyAddress, SigningProxyPort)))
		}
		container.Ports = []corev1.ContainerPort{
			{Name: "validator", ContainerPort: int32(p.settings.ValidatorPort)},
			{Name: "fullnode", ContainerPort: int32(p.settings.FullnodePort)},
		}
		container.VolumeMounts = append(container.VolumeMounts, corev1.VolumeMount{Name: "files", MountPath: genesisDir, ReadOnly: true})
		volumes = append(volumes, hostPathVolume("files", p.filesDir(name, genesisDir)))

	case provisioning.FullnodeConfig:
		container.Image = imageRef(p.kube.Images.Fullnode, c.ImageTag)
		container.Env = []corev1.EnvVar{
			env("LEDGER_VALIDATOR_INDEX", strconv.Itoa(c.ValidatorIndex)),
			env("LEDGER_FULLNODE_INDEX", strconv.Itoa(c.FullnodeIndex)),
			env("LEDGER_NUM_VALIDATORS", strconv.Itoa(c.NumValidators)),
			env("LEDGER_NUM_FULLNODES", strconv.Itoa(c.FullnodesPerValidator)),
			env("LEDGER_SEED_PEER_IP", c.SeedPeer),
			env("LEDGER_OVERRIDES", strings.Join(c.Overrides, ",")),
		}
		container.Ports = []corev1.ContainerPort{{Name: "fullnode", ContainerPort: int32(p.settings.FullnodePort)}}

	case provisioning.SigningProxyConfig:
		container.Image = imageRef(p.kube.Images.SigningProxy, c.ImageTag)
		container.Env = []corev1.EnvVar{
			env("LEDGER_NODE_INDEX", strconv.Itoa(c.Index)),
			env("LEDGER_NUM_VALIDATORS", strconv.Itoa(c.NumValidators)),
			env("LEDGER_SAFETY_RULES_BACKEND", c.Backend),
			env("LEDGER_SAFETY_RULES_PORT", strconv.Itoa(SigningProxyPort)),
		}
		if c.SecretStoreURL != "" {
			container.Env = append(container.Env,
				env("VAULT_ADDR", c.SecretStoreURL),
				tokenEnv("VAULT_TOKEN"))
		}
		container.Ports = []corev1.ContainerPort{{Name: "safety-rules", ContainerPort: SigningProxyPort}}

	case provisioning.SecretStoreConfig:
		port := p.settings.SecretStorePort
		container.Image = p.kube.Images.SecretStore
		container.Command = []string{"/bin/sh", "-c", secretStoreScript}
		container.Env = []corev1.EnvVar{
			env("VAULT_DEV_LISTEN_ADDRESS", fmt.Sprintf("0.0.0.0:%d", port)),
			env("VAULT_ADDR", fmt.Sprintf("http://127.0.0.1:%d", port)),
			tokenEnv("VAULT_DEV_ROOT_TOKEN_ID"),
			tokenEnv("VAULT_TOKEN"),
		}
		container.Ports = []corev1.ContainerPort{{Name: "vault", ContainerPort: int32(port)}}
		container.ReadinessProbe = &corev1.Probe{
			ProbeHandler: corev1.ProbeHandler{
				Exec: &corev1.ExecAction{Command: []string{"/bin/sh", "-c", "vault secrets list | grep -q '^transit/'"}},
			},
			PeriodSeconds: 2,
		}

	default:
		return nil, fmt.Errorf("unsupported role config %T", cfg)
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.kube.Namespace,
			Labels: labels.NewLabelBuilder().
				WithRole(string(cfg.Role())).
				WithSlot(name).
				WithRunIfSet(p.runID).
				Build(),
		},
		Spec: corev1.PodSpec{
			NodeName:      node.Host,
			HostNetwork:   true,
			DNSPolicy:     corev1.DNSClusterFirstWithHostNet,
			RestartPolicy: corev1.RestartPolicyNever,
			Containers:    []corev1.Container{container},
			Volumes:       volumes,
		},
	}, nil
}

// secretStoreScript runs a dev-mode secret store with the transit engine
// mounted. The readiness probe passes once transit is listed.
const secretStoreScript = `vault server -dev &
until vault status >/dev/null 2>&1; do sleep 1; done
vault secrets enable transit
wait`

// ensureTokenSecret creates or updates the secret holding the secret-store
// bearer token.
func (p *Provisioner) ensureTokenSecret(ctx context.Context) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      tokenSecretName,
			Namespace: p.kube.Namespace,
			Labels:    labels.NewLabelBuilder().WithRunIfSet(p.runID).Build(),
		},
		Data: map[string][]byte{tokenSecretKey: []byte(p.settings.SecretStoreToken)},
		Type: corev1.SecretTypeOpaque,
	}

	secrets := p.clientset.CoreV1().Secrets(p.kube.Namespace)
	_, err := secrets.Create(ctx, secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		_, err = secrets.Update(ctx, secret, metav1.UpdateOptions{})
	}
	if err != nil {
		return fmt.Errorf("failed to create or update secret %s/%s: %w", p.kube.Namespace, tokenSecretName, err)
	}
	return nil
}

// dataDir is the host directory backing the slot's persistent state.
func (p *Provisioner) dataDir(slot string) string {
	return path.Join(p.kube.DataDir, slot, "data")
}

// filesDir is the host directory backing dir inside the named container.
func (p *Provisioner) filesDir(container, dir string) string {
	return path.Join(p.kube.DataDir, container, "files", dir)
}

func imageRef(repo, tag string) string {
	if tag == "" {
		return repo
	}
	return repo + ":" + tag
}

func env(name, value string) corev1.EnvVar {
	return corev1.EnvVar{Name: name, Value: value}
}

func tokenEnv(name string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: name,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: tokenSecretName},
				Key:                  tokenSecretKey,
			},
		},
	}
}

func hostPathVolume(name, hostPath string) corev1.Volume {
	return corev1.Volume{
		Name: name,
		VolumeSource: corev1.VolumeSource{
			HostPath: &corev1.HostPathVolumeSource{
				Path: hostPath,
				Type: ptr.To(corev1.HostPathDirectoryOrCreate),
			},
		},
	}
}
