package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestStateRoundTrip(t *testing.T) {
	tests := []State{Pending, Running, Completed, Failed, Cancelled}
	for _, s := range tests {
		data, err := s.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}
		var got State
		if err := got.UnmarshalJSON(data); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != s {
			t.Errorf("round trip %v -> %s -> %v", s, data, got)
		}
	}
}

func TestParseStateUnknown(t *testing.T) {
	if _, ok := ParseState("BOGUS"); ok {
		t.Fatal("expected ParseState to reject unknown state")
	}
}

func TestFrameReaderReadJSON(t *testing.T) {
	buf := strings.NewReader(`{"action":"submit_job","scriptPath":"/bin/echo"}` + "\n" + `{"action":"get_result","jobId":"1"}` + "\n")
	r := NewFrameReader(buf)

	var req ClientRequest
	if err := r.ReadJSON(&req); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if req.Action != ActionSubmitJob || req.ScriptPath != "/bin/echo" {
		t.Errorf("unexpected first request: %+v", req)
	}

	var req2 ClientRequest
	if err := r.ReadJSON(&req2); err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if req2.Action != ActionGetResult || req2.JobID != "1" {
		t.Errorf("unexpected second request: %+v", req2)
	}
}

func TestFrameReaderTruncatedFrame(t *testing.T) {
	r := NewFrameReader(strings.NewReader(`{"action":"submit_job"`)) // no trailing newline
	line, err := r.ReadFrame()
	if line != nil {
		t.Errorf("expected nil line for a truncated frame, got %q", line)
	}
	if err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestFrameReaderCleanEOF(t *testing.T) {
	r := NewFrameReader(strings.NewReader(""))
	line, err := r.ReadFrame()
	if line != nil {
		t.Errorf("expected nil line on clean EOF, got %q", line)
	}
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWriteJSONThenReadJSON(t *testing.T) {
	var buf bytes.Buffer
	resp := ClientResponse{Status: StatusJobSubmitted, JobID: "42"}
	if err := WriteJSON(&buf, resp); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("expected newline-terminated frame")
	}

	var got ClientResponse
	if err := NewFrameReader(&buf).ReadJSON(&got); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Status != resp.Status || got.JobID != resp.JobID {
		t.Errorf("got %+v, want %+v", got, resp)
	}
}
