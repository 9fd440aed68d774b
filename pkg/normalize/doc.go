// Package normalize converts upstream response bodies into a canonical,
// format-neutral tree.
//
// A tree is built from the Go values produced by JSON decoding:
//
//   - map[string]any for objects
//   - []any for arrays
//   - string, bool, json.Number and nil for scalars
//
// XML documents are mapped onto the same shape, so a caller cannot tell
// whether a value came from an XML or a JSON upstream:
//
//	<Travelerinformation>
//	  <id>11133</id>
//	  <name>Developer</name>
//	</Travelerinformation>
//
// normalizes to the same tree as
//
//	{"id": "11133", "name": "Developer"}
//
// Dispatch is driven by the declared Content-Type. Bodies without a
// usable declaration are sniffed before falling back to JSON.
package normalize
