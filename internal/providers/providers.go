// ABOUTME: Shared plumbing for capability providers
// ABOUTME: Error translation from store failures and JSON helpers

package providers

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
)

// decodeInput unmarshals capability input into dst, translating malformed
// JSON into the invalid-input sentinel the dispatcher maps to a
// parameter error.
func decodeInput(input json.RawMessage, dst any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return fmt.Errorf("%w: %v", registry.ErrInvalidInput, err)
	}
	return nil
}

// storeErr translates store sentinels into handler sentinels so the
// dispatcher picks the right protocol code.
func storeErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", registry.ErrNotFound, err)
	}
	return err
}

// jsonText marshals v for resource content. Resources carry their payload
// as JSON text.
func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding resource payload: %w", err)
	}
	return string(data), nil
}
