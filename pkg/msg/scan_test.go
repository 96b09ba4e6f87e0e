package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wellFormedFrames = []string{
	`{}`,
	`{"id":1,"result":{}}`,
	`{"method":"Page.screencastFrame","params":{"data":"AAA=","sessionId":7,"timestamp":1.5}}`,
	`{"id":3,"result":{"result":{"type":"string","value":"{\"x\":1,\"y\":[2,3]}"}}}`,
	`{"id":4,"result":{"result":{"type":"string","value":"a \"quoted}\" {brace"}}}`,
	`{"method":"Runtime.consoleAPICalled","params":{"args":[{"type":"string","value":"]]}}"}],"ts":[1,[2,[3]]]}}`,
	`{"id":5,"error":{"code":-32601,"message":"'Foo.bar' wasn't found"}}`,
	`{"id":6,"result":{"value":"back\\slash\\\\"}}`,
}

func TestChunkScannerSingleChunk(t *testing.T) {
	for _, frame := range wellFormedFrames {
		var s ChunkScanner
		assert.Equal(t, ScanComplete, s.Scan([]byte(frame)), frame)
		assert.Equal(t, 0, s.Depth())
	}
}

func TestChunkScannerEverySplitPoint(t *testing.T) {
	for _, frame := range wellFormedFrames {
		for cut := 1; cut < len(frame); cut++ {
			var s ChunkScanner
			first := frame[:cut]
			second := frame[cut:]

			got := s.Scan([]byte(first))
			require.Equal(t, ScanContinue, got, "frame %q cut at %d", frame, cut)
			require.Equal(t, ScanComplete, s.Scan([]byte(second)), "frame %q cut at %d", frame, cut)
		}
	}
}

func TestChunkScannerByteAtATime(t *testing.T) {
	for _, frame := range wellFormedFrames {
		var s ChunkScanner
		for i := 0; i < len(frame); i++ {
			got := s.Scan([]byte{frame[i]})
			if i == len(frame)-1 {
				assert.Equal(t, ScanComplete, got, frame)
			} else {
				require.Equal(t, ScanContinue, got, "frame %q byte %d", frame, i)
			}
		}
	}
}

func TestChunkScannerThreeWaySplits(t *testing.T) {
	frame := wellFormedFrames[3]
	for a := 1; a < len(frame)-1; a++ {
		for b := a + 1; b < len(frame); b++ {
			var s ChunkScanner
			require.Equal(t, ScanContinue, s.Scan([]byte(frame[:a])))
			require.Equal(t, ScanContinue, s.Scan([]byte(frame[a:b])))
			require.Equal(t, ScanComplete, s.Scan([]byte(frame[b:])))
		}
	}
}

func TestChunkScannerMalformedOpening(t *testing.T) {
	var s ChunkScanner
	assert.Equal(t, ScanMalformed, s.Scan([]byte(`["not","an","object"]`)))
	assert.Equal(t, ScanMalformed, s.Scan([]byte(` {"id":1}`)))
	assert.Equal(t, ScanMalformed, s.Scan(nil))

	// The scanner recovers for the next frame.
	assert.Equal(t, ScanComplete, s.Scan([]byte(`{"id":1}`)))
}

func TestChunkScannerUnbalancedClose(t *testing.T) {
	var s ChunkScanner
	assert.Equal(t, ScanMalformed, s.Scan([]byte(`{}}`)))
	assert.Equal(t, ScanComplete, s.Scan([]byte(`{"id":2}`)))
}

func TestChunkScannerEscapedQuoteKeepsFrameOpen(t *testing.T) {
	var s ChunkScanner
	assert.Equal(t, ScanContinue, s.Scan([]byte(`{"value":"a\"}`)))
	assert.Equal(t, ScanContinue, s.Scan([]byte(`}{\"`)))
	assert.Equal(t, ScanComplete, s.Scan([]byte(`"}`)))
}

func TestChunkScannerEscapeSplitAcrossChunks(t *testing.T) {
	var s ChunkScanner
	assert.Equal(t, ScanContinue, s.Scan([]byte(`{"v":"\`)))
	assert.Equal(t, ScanContinue, s.Scan([]byte(`"}`)))
	assert.Equal(t, ScanComplete, s.Scan([]byte(`"}`)))
}

func TestChunkScannerScenarioOne(t *testing.T) {
	var s ChunkScanner
	var frame []byte

	chunk := []byte(`{"id":1,`)
	require.Equal(t, ScanContinue, s.Scan(chunk))
	frame = append(frame, chunk...)

	chunk = []byte(`"result":{}}`)
	require.Equal(t, ScanComplete, s.Scan(chunk))
	frame = append(frame, chunk...)

	var ids []int64
	err := Extract(frame, []Spec{{Key: "id", Depth: 1, Type: TypeInteger}}, func(_ int, _ Spec, v Value) bool {
		ids = append(ids, v.Int)
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestScanResultString(t *testing.T) {
	assert.Equal(t, "continue", ScanContinue.String())
	assert.Equal(t, "complete", ScanComplete.String())
	assert.Equal(t, "malformed", ScanMalformed.String())
	assert.Equal(t, "unknown", ScanResult(42).String())
}
