package normalize

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrMalformed is returned when a body cannot be parsed in the format it
// was dispatched to.
var ErrMalformed = errors.New("malformed response body")

// Tree is the canonical representation of a normalized response body.
type Tree = any

// Format identifies the parser a body was dispatched to.
type Format string

const (
	// FormatJSON parses the body as a JSON text.
	FormatJSON Format = "json"

	// FormatXML parses the body as an XML document.
	FormatXML Format = "xml"
)

// Normalize parses body according to contentType and returns its tree.
// Malformed input never yields a partial tree.
func Normalize(body []byte, contentType string) (Tree, error) {
	switch Detect(body, contentType) {
	case FormatXML:
		return FromXML(body)
	default:
		return FromJSON(body)
	}
}

// Detect picks the parser for a body. A declared XML media type always
// wins; a missing or generic declaration falls back to content sniffing.
func Detect(body []byte, contentType string) Format {
	mediaType := baseMediaType(contentType)
	if mediaType == "" || mediaType == "application/octet-stream" {
		for m := mimetype.Detect(body); m != nil; m = m.Parent() {
			if IsXML(m.String()) {
				return FormatXML
			}
		}
		return FormatJSON
	}
	if IsXML(mediaType) {
		return FormatXML
	}
	return FormatJSON
}

// IsXML reports whether contentType declares an XML-compatible media type:
// application/xml, text/xml or any structured "+xml" type.
func IsXML(contentType string) bool {
	mediaType := baseMediaType(contentType)
	switch {
	case mediaType == "application/xml", mediaType == "text/xml":
		return true
	case strings.HasSuffix(mediaType, "+xml"):
		return true
	default:
		return false
	}
}

func baseMediaType(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Tolerate broken parameters, the type itself is still usable.
		mediaType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mediaType)
}

func malformed(format Format, err error) error {
	// encoding/xml errors already carry an "xml:" prefix.
	if strings.HasPrefix(err.Error(), string(format)+":") {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrMalformed, format, err)
}
