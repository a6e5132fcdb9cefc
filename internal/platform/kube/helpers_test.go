package kube

import (
	"sync"
	"testing"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/imamik/ledgerlab/internal/config"
)

// cluster is a fake API server whose pods and jobs settle as soon as they
// are created.
type cluster struct {
	clientset *fake.Clientset

	mu       sync.Mutex
	podPhase corev1.PodPhase
	podReady bool
	jobFails bool
	jobs     []*batchv1.Job
	secrets  []*corev1.Secret
}

func newCluster(t *testing.T, objects ...runtime.Object) *cluster {
	t.Helper()
	c := &cluster{
		clientset: fake.NewSimpleClientset(objects...),
		podPhase:  corev1.PodRunning,
		podReady:  true,
	}

	c.clientset.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		pod := action.(k8stesting.CreateAction).GetObject().(*corev1.Pod)
		c.mu.Lock()
		defer c.mu.Unlock()
		pod.Status.Phase = c.podPhase
		status := corev1.ConditionFalse
		if c.podReady {
			status = corev1.ConditionTrue
		}
		pod.Status.Conditions = []corev1.PodCondition{{Type: corev1.PodReady, Status: status}}
		return false, nil, nil
	})

	c.clientset.PrependReactor("create", "jobs", func(action k8stesting.Action) (bool, runtime.Object, error) {
		job := action.(k8stesting.CreateAction).GetObject().(*batchv1.Job)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.jobs = append(c.jobs, job.DeepCopy())
		if c.jobFails {
			job.Status.Failed = 1
			job.Status.Conditions = []batchv1.JobCondition{{Type: batchv1.JobFailed, Status: corev1.ConditionTrue}}
		} else {
			job.Status.Succeeded = 1
			job.Status.Conditions = []batchv1.JobCondition{{Type: batchv1.JobComplete, Status: corev1.ConditionTrue}}
		}
		return false, nil, nil
	})

	c.clientset.PrependReactor("create", "secrets", func(action k8stesting.Action) (bool, runtime.Object, error) {
		secret := action.(k8stesting.CreateAction).GetObject().(*corev1.Secret)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.secrets = append(c.secrets, secret.DeepCopy())
		return false, nil, nil
	})

	return c
}

func (c *cluster) createdJobs() []*batchv1.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*batchv1.Job(nil), c.jobs...)
}

func (c *cluster) createdSecrets() []*corev1.Secret {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*corev1.Secret(nil), c.secrets...)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Settings.SecretStoreToken = "s3cret"
	cfg.Kubernetes.Namespace = "ledger-test"
	cfg.Kubernetes.DataDir = "/var/lib/ledger"
	return cfg
}

func testTimeouts() *config.Timeouts {
	t := config.TestTimeouts()
	t.PodReady = 200 * time.Millisecond
	t.JobComplete = 200 * time.Millisecond
	return t
}

func newTestProvisioner(c *cluster, cfg *config.Config) *Provisioner {
	return New(c.clientset, cfg, WithTimeouts(testTimeouts()), WithRunID("run-1"))
}

func readyNode(name, ip string, nodeLabels map[string]string) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: nodeLabels},
		Status: corev1.NodeStatus{
			Conditions: []corev1.NodeCondition{{Type: corev1.NodeReady, Status: corev1.ConditionTrue}},
			Addresses:  []corev1.NodeAddress{{Type: corev1.NodeInternalIP, Address: ip}},
		},
	}
}

func envValue(container corev1.Container, name string) (string, bool) {
	for _, e := range container.Env {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}
