package kube

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"

	"github.com/imamik/ledgerlab/internal/provisioning"
	"github.com/imamik/ledgerlab/internal/util/labels"
)

var errNodeTaken = errors.New("node already allocated")

// AllocateNode labels a free, ready node with the slot name. A slot that is
// already labeled returns its existing node.
func (p *Provisioner) AllocateNode(ctx context.Context, name string) (provisioning.NodeHandle, error) {
	existing, err := p.nodeForSlot(ctx, name)
	switch {
	case err == nil:
		return handleFor(name, existing)
	case !provisioning.IsKind(err, provisioning.KindNotFound):
		return provisioning.NodeHandle{}, err
	}

	for {
		candidates, err := p.freeNodes(ctx)
		if err != nil {
			return provisioning.NodeHandle{}, err
		}
		if len(candidates) == 0 {
			return provisioning.NodeHandle{}, provisioning.NotFoundError("", name,
				fmt.Errorf("no free schedulable node matches selector %q", labels.Selector(p.kube.NodeSelector)))
		}

		node, err := p.claim(ctx, candidates[0].Name, name)
		if errors.Is(err, errNodeTaken) {
			continue
		}
		if err != nil {
			return provisioning.NodeHandle{}, err
		}

		p.log.V(1).Info("Allocated node", "slot", name, "node", node.Name)
		return handleFor(name, node)
	}
}

// claim sets the slot label on the named node unless another slot took it.
// Claims from other processes surface as update conflicts.
func (p *Provisioner) claim(ctx context.Context, nodeName, slot string) (*corev1.Node, error) {
	mu, _ := p.claims.LoadOrStore(nodeName, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	defer mu.(*sync.Mutex).Unlock()

	var claimed *corev1.Node
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		node, err := p.clientset.CoreV1().Nodes().Get(ctx, nodeName, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if owner, ok := node.Labels[labels.KeySlot]; ok && owner != slot {
			return errNodeTaken
		}
		if node.Labels == nil {
			node.Labels = map[string]string{}
		}
		node.Labels[labels.KeySlot] = slot
		claimed, err = p.clientset.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{})
		return err
	})
	if err != nil && !errors.Is(err, errNodeTaken) {
		return nil, fmt.Errorf("failed to label node %s: %w", nodeName, err)
	}
	return claimed, err
}

// freeNodes returns the ready, unlabeled nodes matching the node selector,
// ordered by name.
func (p *Provisioner) freeNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := p.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: labels.Selector(p.kube.NodeSelector),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var free []corev1.Node
	for _, node := range list.Items {
		if _, taken := node.Labels[labels.KeySlot]; taken {
			continue
		}
		if !isNodeSchedulable(&node) {
			continue
		}
		free = append(free, node)
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Name < free[j].Name })
	return free, nil
}

// nodeForSlot returns the node labeled with the slot name.
func (p *Provisioner) nodeForSlot(ctx context.Context, slot string) (*corev1.Node, error) {
	list, err := p.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{
		LabelSelector: labels.Selector(map[string]string{labels.KeySlot: slot}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	if len(list.Items) == 0 {
		return nil, provisioning.NotFoundError("", slot, errors.New("no node allocated"))
	}
	return &list.Items[0], nil
}

// releaseNodes removes the slot label from every node and returns how many
// nodes were released.
func (p *Provisioner) releaseNodes(ctx context.Context) (int, error) {
	list, err := p.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{LabelSelector: labels.KeySlot})
	if err != nil {
		return 0, fmt.Errorf("failed to list allocated nodes: %w", err)
	}

	for _, item := range list.Items {
		err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
			node, err := p.clientset.CoreV1().Nodes().Get(ctx, item.Name, metav1.GetOptions{})
			if err != nil {
				return err
			}
			delete(node.Labels, labels.KeySlot)
			_, err = p.clientset.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{})
			return err
		})
		if err := ignoreNotFound(err); err != nil {
			return 0, fmt.Errorf("failed to release node %s: %w", item.Name, err)
		}
	}
	return len(list.Items), nil
}

func handleFor(slot string, node *corev1.Node) (provisioning.NodeHandle, error) {
	addr := internalIP(node)
	if addr == "" {
		return provisioning.NodeHandle{}, provisioning.ConfigurationError("", slot,
			fmt.Errorf("node %s has no internal IP", node.Name))
	}
	return provisioning.NodeHandle{Name: slot, Host: node.Name, InternalAddress: addr}, nil
}

func internalIP(node *corev1.Node) string {
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			return addr.Address
		}
	}
	return ""
}

func isNodeSchedulable(node *corev1.Node) bool {
	if node.Spec.Unschedulable {
		return false
	}
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}
