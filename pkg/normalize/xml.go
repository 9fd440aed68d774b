package normalize

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// textKey holds the character data of an element that also carries child
// elements or attributes.
const textKey = ""

type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

// FromXML decodes an XML document into the canonical tree.
//
// The root element is unwrapped: its children become the top-level keys.
// A root holding nothing but text normalizes to {rootName: text}.
func FromXML(body []byte) (Tree, error) {
	root, err := parseXML(body)
	if err != nil {
		return nil, malformed(FormatXML, err)
	}

	if len(root.children) == 0 && len(root.attrs) == 0 {
		return map[string]any{root.name: strings.TrimSpace(root.text.String())}, nil
	}
	return root.value(), nil
}

func parseXML(body []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	// Declared encodings such as ISO-8859-1 are transcoded to UTF-8.
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *element
		stack []*element
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root != nil && len(stack) == 0 {
				return nil, errors.New("multiple root elements")
			}
			el := &element{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, errors.New("character data outside root element")
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)
		}
	}

	if root == nil {
		return nil, errors.New("no root element")
	}
	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

func (e *element) value() Tree {
	text := strings.TrimSpace(e.text.String())
	if len(e.children) == 0 && len(e.attrs) == 0 {
		return text
	}

	obj := make(map[string]any, len(e.children)+len(e.attrs))
	for _, attr := range e.attrs {
		// Namespace declarations carry no data.
		if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
			continue
		}
		put(obj, attr.Name.Local, attr.Value)
	}
	for _, child := range e.children {
		put(obj, child.name, child.value())
	}
	if text != "" {
		put(obj, textKey, text)
	}
	return obj
}

// put stores v under key, turning repeated keys into an array. Element
// values are never arrays themselves, so an existing []any is always one
// built here.
func put(obj map[string]any, key string, v Tree) {
	existing, ok := obj[key]
	if !ok {
		obj[key] = v
		return
	}
	if arr, ok := existing.([]any); ok {
		obj[key] = append(arr, v)
		return
	}
	obj[key] = []any{existing, v}
}
