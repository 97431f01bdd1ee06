package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single newline-delimited JSON message. Spec
// requires tolerating messages up to at least 64 KiB; this gives
// generous headroom for inline scriptContent.
const MaxFrameBytes = 1 << 20 // 1 MiB

// FrameReader reads newline-delimited JSON messages off a connection.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadFrame returns the next line (without its trailing newline) or an
// error. io.EOF is returned verbatim when the peer closes cleanly
// between frames. If the peer closes mid-frame, leaving bytes with no
// trailing newline, that is reported as io.ErrUnexpectedEOF rather
// than handing the caller a silently truncated frame.
func (f *FrameReader) ReadFrame() ([]byte, error) {
	line, err := f.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if len(line) > MaxFrameBytes {
		return nil, fmt.Errorf("protocol: frame exceeds %d bytes", MaxFrameBytes)
	}
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	return line, nil
}

// ReadJSON reads one frame and unmarshals it into v.
func (f *FrameReader) ReadJSON(v interface{}) error {
	line, err := f.ReadFrame()
	if err != nil {
		return err
	}
	return json.Unmarshal(line, v)
}

// WriteJSON marshals v and writes it as a single newline-terminated
// frame.
func WriteJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
