package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
)

// ErrUnauthorized means the provider rejected the configured credentials,
// or none were configured. The chat command reacts by re-running configure.
var ErrUnauthorized = errors.New("missing or invalid API key")

// ClassifyError maps provider errors onto the package sentinels
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
	}
	return err
}
