package adapters

import (
	"fmt"

	"smartlib/internal/gateway"
	"smartlib/pkg/platform/sentinel"
)

// translate maps a gateway failure to the sentinel the saga branches on,
// keeping the gateway error in the chain for logging.
func translate(op string, err error) error {
	switch gateway.CategoryOf(err) {
	case gateway.CategoryNotFound:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrNotFound, err)
	case gateway.CategoryRejected:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrRejected, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
}
