package kube

import (
	"context"
	"errors"
	"fmt"
	"path"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/labels"
	"github.com/imamik/ledgerlab/internal/util/naming"
	"github.com/imamik/ledgerlab/internal/util/ptr"
)

// maxCopyBytes is the largest payload a copy job can carry in a secret.
const maxCopyBytes = 1 << 20

// WipeData removes the slot's persistent state on its node. Files placed with
// CopyFile live outside the data directory and are kept.
func (p *Provisioner) WipeData(ctx context.Context, name string) error {
	node, err := p.nodeForSlot(ctx, name)
	if err != nil {
		return err
	}

	job := p.jobFor(naming.WipeJob(name), name, labels.ComponentWipe, node.Name, corev1.Container{
		Name:         "wipe",
		Image:        p.kube.Images.Tools,
		Command:      []string{"find", "/target", "-mindepth", "1", "-delete"},
		VolumeMounts: []corev1.VolumeMount{{Name: "target", MountPath: "/target"}},
	}, hostPathVolume("target", p.dataDir(name)))

	return p.runJob(ctx, job)
}

// CopyFile writes data to destPath of the named container on the slot's node.
// The payload travels in a secret that a job on the node copies into the
// host directory backing the container's mount.
func (p *Provisioner) CopyFile(ctx context.Context, name, containerName, destPath string, data []byte) error {
	if !path.IsAbs(destPath) {
		return provisioning.ConfigurationError("", name, fmt.Errorf("destination %q is not absolute", destPath))
	}
	if len(data) > maxCopyBytes {
		return provisioning.ConfigurationError("", name, fmt.Errorf("payload of %d bytes exceeds %d", len(data), maxCopyBytes))
	}

	node, err := p.nodeForSlot(ctx, name)
	if err != nil {
		return err
	}

	jobName := naming.CopyJob(containerName, p.nextCopySeq())
	secrets := p.clientset.CoreV1().Secrets(p.kube.Namespace)
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: p.kube.Namespace,
			Labels:    p.jobLabels(name, labels.ComponentCopy),
		},
		Data: map[string][]byte{"payload": data},
		Type: corev1.SecretTypeOpaque,
	}
	if _, err := secrets.Create(ctx, secret, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create secret %s: %w", jobName, err)
	}
	defer func() {
		if err := ignoreNotFound(secrets.Delete(context.WithoutCancel(ctx), jobName, metav1.DeleteOptions{})); err != nil {
			p.log.Error(err, "Failed to delete copy payload", "secret", jobName)
		}
	}()

	destDir := path.Dir(destPath)
	job := p.jobFor(jobName, name, labels.ComponentCopy, node.Name, corev1.Container{
		Name:    "copy",
		Image:   p.kube.Images.Tools,
		Command: []string{"cp", "/src/payload", path.Join("/dst", path.Base(destPath))},
		VolumeMounts: []corev1.VolumeMount{
			{Name: "src", MountPath: "/src", ReadOnly: true},
			{Name: "dst", MountPath: "/dst"},
		},
	},
		corev1.Volume{Name: "src", VolumeSource: corev1.VolumeSource{Secret: &corev1.SecretVolumeSource{SecretName: jobName}}},
		hostPathVolume("dst", p.filesDir(containerName, destDir)),
	)

	if err := p.runJob(ctx, job); err != nil {
		return err
	}
	p.log.V(1).Info("Copied file", "slot", name, "container", containerName, "path", destPath, "bytes", len(data))
	return nil
}

func (p *Provisioner) jobFor(name, slot, component, nodeName string, container corev1.Container, volumes ...corev1.Volume) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: p.kube.Namespace,
			Labels:    p.jobLabels(slot, component),
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: ptr.To(int32(0)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: p.jobLabels(slot, component)},
				Spec: corev1.PodSpec{
					NodeName:      nodeName,
					RestartPolicy: corev1.RestartPolicyNever,
					Containers:    []corev1.Container{container},
					Volumes:       volumes,
				},
			},
		},
	}
}

func (p *Provisioner) jobLabels(slot, component string) map[string]string {
	return labels.NewLabelBuilder().
		WithSlot(slot).
		WithComponent(component).
		WithRunIfSet(p.runID).
		Build()
}

// runJob creates job, waits for it to finish and deletes it.
func (p *Provisioner) runJob(ctx context.Context, job *batchv1.Job) error {
	jobs := p.clientset.BatchV1().Jobs(p.kube.Namespace)

	// A job left behind by an interrupted run would block the create.
	background := metav1.DeletePropagationBackground
	if err := ignoreNotFound(jobs.Delete(ctx, job.Name, metav1.DeleteOptions{PropagationPolicy: &background})); err != nil {
		return fmt.Errorf("failed to delete stale job %s: %w", job.Name, err)
	}

	if _, err := jobs.Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.Name, err)
	}

	waitErr := p.waitForJob(ctx, job.Name)

	if err := ignoreNotFound(jobs.Delete(context.WithoutCancel(ctx), job.Name, metav1.DeleteOptions{PropagationPolicy: &background})); err != nil {
		waitErr = errors.Join(waitErr, fmt.Errorf("failed to delete job %s: %w", job.Name, err))
	}
	return waitErr
}

func (p *Provisioner) nextCopySeq() int {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	p.copySeq++
	return p.copySeq
}
