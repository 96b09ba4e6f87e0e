// Package jsengine prepares JavaScript for Runtime.evaluate: syntax
// preflight, JSON escaping, and the page scripts cdt injects.
package jsengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Check compiles src without running it and returns the syntax error, if any.
func Check(src string) error {
	if _, err := goja.Compile("script", src, false); err != nil {
		return fmt.Errorf("script does not compile: %w", err)
	}
	return nil
}

// Escape returns src as the body of a JSON string literal, without the
// surrounding quotes.
func Escape(src string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(src)
	out := buf.Bytes()
	out = bytes.TrimSuffix(out, []byte("\n"))
	return string(out[1 : len(out)-1])
}

// Unescape decodes the body of a JSON string literal, as found between the
// quotes of a reply value.
func Unescape(body []byte) (string, error) {
	quoted := make([]byte, 0, len(body)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, body...)
	quoted = append(quoted, '"')

	var s string
	if err := json.Unmarshal(quoted, &s); err != nil {
		return "", fmt.Errorf("invalid JSON string: %w", err)
	}
	return s, nil
}

// ElementRectScript returns an expression that evaluates to the JSON of the
// bounding client rect of the element with the given id.
func ElementRectScript(id string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)
	return fmt.Sprintf("JSON.stringify(document.getElementById('%s').getBoundingClientRect());", r.Replace(id))
}
