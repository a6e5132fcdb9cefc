// Package labels provides consistent labeling for everything a bootstrap run
// creates: pool servers, scheduler nodes, pods and jobs.
//
// Keys use the ledgerlab.io prefix. Label values are valid both as Hetzner
// Cloud labels and as Kubernetes labels.
package labels
