package kube

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/ledgerlab/internal/config"
	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/labels"
)

// Provisioner allocates cluster nodes to slots and runs workloads on them.
type Provisioner struct {
	clientset kubernetes.Interface
	kube      config.KubernetesConfig
	settings  config.Settings
	timeouts  *config.Timeouts
	runID     string
	log       logr.Logger

	// claims holds a *sync.Mutex per node name for in-process claims.
	claims  sync.Map
	copySeq int
	seqMu   sync.Mutex
}

var _ provisioning.NodeProvisioner = (*Provisioner)(nil)

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithTimeouts overrides the timeouts loaded from the environment.
func WithTimeouts(t *config.Timeouts) Option {
	return func(p *Provisioner) { p.timeouts = t }
}

// WithRunID labels every workload with the bootstrap run ID.
func WithRunID(id string) Option {
	return func(p *Provisioner) { p.runID = id }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Provisioner) { p.log = log }
}

// New creates a Provisioner on an existing clientset.
func New(clientset kubernetes.Interface, cfg *config.Config, opts ...Option) *Provisioner {
	p := &Provisioner{
		clientset: clientset,
		kube:      cfg.Kubernetes,
		settings:  cfg.Settings,
		timeouts:  config.LoadTimeouts(),
		log:       logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.WithValues("namespace", p.kube.Namespace)
	return p
}

// NewFromKubeconfig creates a Provisioner from cfg.Kubernetes.Kubeconfig,
// falling back to KUBECONFIG and the in-cluster config.
func NewFromKubeconfig(cfg *config.Config, opts ...Option) (*Provisioner, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = cfg.Kubernetes.Kubeconfig
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return New(clientset, cfg, opts...), nil
}

// Cleanup deletes every managed pod, job and secret in the namespace, releases
// all node allocations and waits for the pods to disappear.
func (p *Provisioner) Cleanup(ctx context.Context) error {
	if err := p.ensureNamespace(ctx); err != nil {
		return err
	}

	ns := p.kube.Namespace
	selector := metav1.ListOptions{LabelSelector: labels.SelectorManaged()}
	background := metav1.DeletePropagationBackground
	deleteOpts := metav1.DeleteOptions{PropagationPolicy: &background}

	jobs, err := p.clientset.BatchV1().Jobs(ns).List(ctx, selector)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, job := range jobs.Items {
		if err := ignoreNotFound(p.clientset.BatchV1().Jobs(ns).Delete(ctx, job.Name, deleteOpts)); err != nil {
			return fmt.Errorf("failed to delete job %s: %w", job.Name, err)
		}
	}

	pods, err := p.clientset.CoreV1().Pods(ns).List(ctx, selector)
	if err != nil {
		return fmt.Errorf("failed to list pods: %w", err)
	}
	for _, pod := range pods.Items {
		if err := ignoreNotFound(p.clientset.CoreV1().Pods(ns).Delete(ctx, pod.Name, metav1.DeleteOptions{})); err != nil {
			return fmt.Errorf("failed to delete pod %s: %w", pod.Name, err)
		}
	}

	secrets, err := p.clientset.CoreV1().Secrets(ns).List(ctx, selector)
	if err != nil {
		return fmt.Errorf("failed to list secrets: %w", err)
	}
	for _, secret := range secrets.Items {
		if err := ignoreNotFound(p.clientset.CoreV1().Secrets(ns).Delete(ctx, secret.Name, metav1.DeleteOptions{})); err != nil {
			return fmt.Errorf("failed to delete secret %s: %w", secret.Name, err)
		}
	}

	released, err := p.releaseNodes(ctx)
	if err != nil {
		return err
	}

	p.log.Info("Cleaned up scheduler state", "jobs", len(jobs.Items), "pods", len(pods.Items),
		"secrets", len(secrets.Items), "nodes", released)

	return wait.PollUntilContextTimeout(ctx, p.timeouts.ResourcePoll, p.timeouts.Cleanup, true, func(ctx context.Context) (bool, error) {
		remaining, err := p.clientset.CoreV1().Pods(ns).List(ctx, selector)
		if err != nil {
			return false, nil
		}
		return len(remaining.Items) == 0, nil
	})
}

func (p *Provisioner) ensureNamespace(ctx context.Context) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   p.kube.Namespace,
			Labels: labels.NewLabelBuilder().Build(),
		},
	}
	_, err := p.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("failed to create namespace %s: %w", p.kube.Namespace, err)
	}
	return nil
}

func ignoreNotFound(err error) error {
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
