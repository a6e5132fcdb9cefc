package kube

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
)

// waitForPod polls until the pod is running and ready. A pod that terminates
// fails the wait immediately.
func (p *Provisioner) waitForPod(ctx context.Context, name string) error {
	var last corev1.PodPhase
	err := wait.PollUntilContextTimeout(ctx, p.timeouts.ResourcePoll, p.timeouts.PodReady, true, func(ctx context.Context) (bool, error) {
		pod, err := p.clientset.CoreV1().Pods(p.kube.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		last = pod.Status.Phase
		switch pod.Status.Phase {
		case corev1.PodFailed, corev1.PodSucceeded:
			return false, fmt.Errorf("pod %s terminated with phase %s", name, pod.Status.Phase)
		case corev1.PodRunning:
			return isPodReady(pod), nil
		default:
			return false, nil
		}
	})
	if err != nil {
		return fmt.Errorf("pod %s did not become ready (phase %q): %w", name, last, err)
	}
	return nil
}

// waitForJob polls until the job completes or fails.
func (p *Provisioner) waitForJob(ctx context.Context, name string) error {
	err := wait.PollUntilContextTimeout(ctx, p.timeouts.ResourcePoll, p.timeouts.JobComplete, true, func(ctx context.Context) (bool, error) {
		job, err := p.clientset.BatchV1().Jobs(p.kube.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		if hasJobCondition(job, batchv1.JobFailed) || job.Status.Failed > 0 {
			return false, fmt.Errorf("job %s failed", name)
		}
		return hasJobCondition(job, batchv1.JobComplete) || job.Status.Succeeded > 0, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for job %s: %w", name, err)
	}
	return nil
}

func isPodReady(pod *corev1.Pod) bool {
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

func hasJobCondition(job *batchv1.Job, condType batchv1.JobConditionType) bool {
	for _, cond := range job.Status.Conditions {
		if cond.Type == condType && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}
