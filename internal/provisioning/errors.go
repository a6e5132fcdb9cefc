package provisioning

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provisioning failures.
type ErrorKind string

const (
	// KindTransient failures may succeed on retry. Only secret-store key
	// creation is retried.
	KindTransient ErrorKind = "transient"
	// KindConfiguration failures indicate a caller or allocator bug.
	KindConfiguration ErrorKind = "configuration"
	// KindRemoteOperation failures come from a remote call that exhausted
	// any applicable retries.
	KindRemoteOperation ErrorKind = "remote"
	// KindNotFound failures reference a node or file that does not exist.
	KindNotFound ErrorKind = "not-found"
)

// ProvisionError identifies the phase and resource a failure belongs to.
type ProvisionError struct {
	Kind     ErrorKind
	Phase    string
	Resource string
	Err      error
}

func (e *ProvisionError) Error() string {
	switch {
	case e.Phase != "" && e.Resource != "":
		return fmt.Sprintf("%s: %s: %v", e.Phase, e.Resource, e.Err)
	case e.Resource != "":
		return fmt.Sprintf("%s: %v", e.Resource, e.Err)
	case e.Phase != "":
		return fmt.Sprintf("%s: %v", e.Phase, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// TransientError wraps err as retryable.
func TransientError(phase, resource string, err error) error {
	return &ProvisionError{Kind: KindTransient, Phase: phase, Resource: resource, Err: err}
}

// ConfigurationError wraps err as a non-retryable configuration failure.
func ConfigurationError(phase, resource string, err error) error {
	return &ProvisionError{Kind: KindConfiguration, Phase: phase, Resource: resource, Err: err}
}

// RemoteError wraps err as a failed remote operation.
func RemoteError(phase, resource string, err error) error {
	return &ProvisionError{Kind: KindRemoteOperation, Phase: phase, Resource: resource, Err: err}
}

// NotFoundError wraps err as a missing resource.
func NotFoundError(phase, resource string, err error) error {
	return &ProvisionError{Kind: KindNotFound, Phase: phase, Resource: resource, Err: err}
}

// IsKind reports whether any ProvisionError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var pe *ProvisionError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Kind == kind {
			return true
		}
		err = pe.Err
	}
	return false
}

// KindOf returns the kind of the outermost ProvisionError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProvisionError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
