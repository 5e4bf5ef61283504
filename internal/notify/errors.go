package notify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeliveryFailed = errors.New("email delivery failed")
	ErrSenderRejected = errors.New("smtp sender rejected by policy")
)

func wrapDelivery(err error) error {
	if err == nil || errors.Is(err, ErrDeliveryFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
}

// IsSenderPolicyError recognises servers refusing the envelope sender
// because it differs from the authenticated account.
func IsSenderPolicyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range []string{
		"sender must match authenticated user",
		"sender address rejected",
		"not owned by user",
		"sender login mismatch",
		"not authorized to send as",
		"must be authenticated as",
		"sender rejected",
	} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
