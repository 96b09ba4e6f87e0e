package command

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devicelab-dev/cdt/pkg/core"
	"github.com/devicelab-dev/cdt/pkg/jsengine"
	"github.com/devicelab-dev/cdt/pkg/msg"
	"github.com/devicelab-dev/cdt/pkg/report"
)

// Runtime.evaluate replies carry the value at result.result.value.
var evaluateValueSpec = []msg.Spec{{Key: "value", Depth: 3, Type: msg.TypeString}}

// evaluateValue returns the decoded string value of a Runtime.evaluate
// reply.
func evaluateValue(frame []byte) (string, bool) {
	var raw []byte
	found := false
	_ = msg.Extract(frame, evaluateValueSpec, func(_ int, _ msg.Spec, v msg.Value) bool {
		raw = v.Str
		found = true
		return true
	})
	if !found {
		return "", false
	}
	s, err := jsengine.Unescape(raw)
	if err != nil {
		return "", false
	}
	return s, true
}

// decodeImage base64-decodes an image payload taken straight from a frame.
func decodeImage(data []byte) ([]byte, error) {
	if bytes.IndexByte(data, '\\') >= 0 {
		s, err := jsengine.Unescape(data)
		if err != nil {
			return nil, err
		}
		data = []byte(s)
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}
	return out[:n], nil
}

// writeOutput writes data to dir/name, creating dir as needed.
func writeOutput(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// saveImage writes an image and tells rec about it.
func saveImage(rec ArtifactRecorder, kind, dir, name, format string, img []byte) (string, error) {
	path, err := writeOutput(dir, name, img)
	if err != nil {
		return "", err
	}
	if rec != nil {
		rec.AddArtifact(report.Artifact{Name: kind, ContentType: report.ContentType(format), Path: path})
	}
	return path, nil
}

// intArgs parses the named positional arguments as integers.
func intArgs(args []string, names ...string) ([]int, error) {
	if len(args) < len(names) {
		return nil, core.ErrBadArguments.WithMessagef("expected %d arguments (%v), got %d", len(names), names, len(args))
	}
	out := make([]int, len(names))
	for i, name := range names {
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, core.ErrBadArguments.WithMessagef("%s must be an integer, got %q", name, args[i])
		}
		out[i] = n
	}
	return out, nil
}

var imageFormats = map[string]bool{"png": true, "jpeg": true, "webp": true}

func checkFormat(format string) error {
	if !imageFormats[format] {
		return core.ErrBadArguments.WithMessagef("unsupported image format %q (want png, jpeg or webp)", format)
	}
	return nil
}
