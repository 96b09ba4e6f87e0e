// Package msg implements the DevTools wire layer: incremental frame scanning,
// selective field extraction, request rendering and the correlation queues
// that pair outbound requests with their replies.
//
// Nothing in this package builds a JSON tree. Frames are classified and
// mined for a handful of keys in a single pass over the raw bytes.
package msg

// ScanResult classifies the frame after a chunk has been consumed.
type ScanResult int

const (
	// ScanContinue means the frame is still open and more chunks are needed.
	ScanContinue ScanResult = iota
	// ScanComplete means the chunk closed the outermost object.
	ScanComplete
	// ScanMalformed means the frame cannot be a JSON object.
	ScanMalformed
)

func (r ScanResult) String() string {
	switch r {
	case ScanContinue:
		return "continue"
	case ScanComplete:
		return "complete"
	case ScanMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// lexer is the depth/quote state shared by the chunk scanner and the
// field extractor.
type lexer struct {
	quoted   bool
	escaped  bool
	boundary bool
	depth    int
}

// step advances the lexer by one byte.
func (l *lexer) step(c byte) {
	if l.escaped {
		l.escaped = false
		return
	}
	switch c {
	case '\\':
		if l.quoted {
			l.escaped = true
		}
		l.boundary = false
	case ',':
		if !l.quoted {
			l.boundary = true
		}
	case '[', '{':
		if !l.quoted {
			l.boundary = true
			l.depth++
		}
	case ']', '}':
		if !l.quoted {
			l.depth--
		}
	case '"':
		l.quoted = !l.quoted
		l.boundary = false
	default:
		l.boundary = false
	}
}

// ChunkScanner finds the end of a frame delivered in arbitrary pieces.
// The zero value is ready to use. One scanner serves one connection.
type ChunkScanner struct {
	lex lexer
}

// Scan consumes one chunk of the frame currently being received.
func (s *ChunkScanner) Scan(chunk []byte) ScanResult {
	if s.lex.depth == 0 {
		if len(chunk) == 0 || chunk[0] != '{' {
			s.Reset()
			return ScanMalformed
		}
	}

	for _, c := range chunk {
		s.lex.step(c)
		if s.lex.depth < 0 {
			s.Reset()
			return ScanMalformed
		}
	}

	if s.lex.depth > 0 {
		return ScanContinue
	}

	s.Reset()
	return ScanComplete
}

// Reset discards any partially scanned frame.
func (s *ChunkScanner) Reset() {
	s.lex = lexer{}
}

// Depth reports the current nesting depth of the open frame.
func (s *ChunkScanner) Depth() int {
	return s.lex.depth
}
