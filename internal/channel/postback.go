package channel

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/antoniostano/guides/internal/mode"
)

var (
	ErrNoSelection      = errors.New("postback carries no mode selection")
	ErrUnknownSelection = errors.New("postback selects an unknown mode")
)

// DecodeSelection parses a postback payload into a validated mode selection.
// The payload grammar is flat key=value pairs joined by '&', with values
// percent-encoded; the "mode" key carries the selection.
func DecodeSelection(data string) (mode.Mode, error) {
	pairs, err := decodePairs(data)
	if err != nil {
		return mode.None, err
	}
	raw, ok := pairs["mode"]
	if !ok || raw == "" {
		return mode.None, ErrNoSelection
	}
	m, ok := mode.Parse(raw)
	if !ok {
		return mode.None, fmt.Errorf("%w: %q", ErrUnknownSelection, raw)
	}
	return m, nil
}

func decodePairs(data string) (map[string]string, error) {
	pairs := make(map[string]string)
	for _, field := range strings.Split(data, "&") {
		if field == "" {
			continue
		}
		key, value, found := strings.Cut(field, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed postback field %q", field)
		}
		decoded, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("malformed postback value %q: %w", value, err)
		}
		pairs[key] = decoded
	}
	return pairs, nil
}
