package normalize

import (
	"bytes"
	"errors"
	"io"

	"github.com/goccy/go-json"
)

// FromJSON decodes a single JSON value. Numbers are kept as json.Number
// so large integers survive the round trip to the caller unchanged.
func FromJSON(body []byte) (Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var tree Tree
	if err := dec.Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, malformed(FormatJSON, err)
	}

	// Anything after the first value is garbage.
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, malformed(FormatJSON, err)
	}

	return tree, nil
}
