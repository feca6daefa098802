// Package realtime consumes a board's server-push event stream.
package realtime

import "bytes"

var dataPrefix = []byte("data: ")

// FrameDecoder splits an SSE byte stream into event payloads. Bytes are
// fed incrementally; a trailing partial line is held over until the rest
// arrives, so a frame split across arbitrary chunk boundaries decodes the
// same as one delivered whole. Comment lines (":keepalive") and blank
// separators are skipped.
type FrameDecoder struct {
	buf []byte
}

// Feed appends chunk and returns the payloads of every line completed by
// it, with the "data: " prefix stripped. Lines without the prefix are
// dropped.
func (d *FrameDecoder) Feed(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)
	var frames [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return frames
		}
		line := bytes.TrimRight(d.buf[:i], "\r")
		d.buf = d.buf[i+1:]
		if len(line) == 0 || line[0] == ':' {
			continue
		}
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := make([]byte, len(line)-len(dataPrefix))
		copy(payload, line[len(dataPrefix):])
		frames = append(frames, payload)
	}
}

// Reset drops any buffered partial line. Called between connections so a
// truncated frame from a dead stream never prefixes the next one.
func (d *FrameDecoder) Reset() {
	d.buf = d.buf[:0]
}
