package hcloud

import (
	"errors"
	"slices"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// retryable reports whether a server call may succeed when repeated: the
// server is busy with another action, or the project hit the rate limit.
func retryable(err error) bool {
	return hasCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
		hcloud.ErrorCodeRateLimitExceeded,
	)
}

// rejected reports whether the API refused the request itself. Sending it
// again cannot succeed.
func rejected(err error) bool {
	return hasCode(err,
		hcloud.ErrorCodeNotFound,
		hcloud.ErrorCodeInvalidInput,
		hcloud.ErrorCodeInvalidServerType,
	)
}

// IsNotFound reports whether err is an hcloud not_found error.
func IsNotFound(err error) bool {
	return hasCode(err, hcloud.ErrorCodeNotFound)
}

func hasCode(err error, codes ...hcloud.ErrorCode) bool {
	var apiErr hcloud.Error
	if err == nil || !errors.As(err, &apiErr) {
		return false
	}
	return slices.Contains(codes, apiErr.Code)
}
