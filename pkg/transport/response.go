package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
)

// Response is a completed or streaming HTTP response. Buffered
// responses carry Body; streaming responses expose Lines and must be
// closed by the owner.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	stream io.ReadCloser
	lines  *Lines
}

// NewStreamingResponse wraps an already-open body. It exists so that
// higher layers can be exercised against scripted streams.
func NewStreamingResponse(statusCode int, header http.Header, body io.ReadCloser) *Response {
	return &Response{StatusCode: statusCode, Header: header, stream: body}
}

// JSON decodes the buffered body into v. With strict set, a status
// code other than 200 or 201 is rejected with a ResponseError before
// decoding. The text encoding is guessed from the body bytes because
// the server frequently omits a charset.
func (r *Response) JSON(strict bool, v any) error {
	text := decodeText(r.Body)
	if strict && r.StatusCode != http.StatusOK && r.StatusCode != http.StatusCreated {
		return &ResponseError{StatusCode: r.StatusCode, Body: text}
	}
	return json.Unmarshal([]byte(text), v)
}

// Lines returns a line iterator over the streaming body. The iterator
// is finite and tied to this connection; a fresh request is needed to
// read more. Read errors mid-stream (a partial chunked read, a reset
// connection) end the iteration silently so the owner's reconnect
// logic can take over.
func (r *Response) Lines() *Lines {
	if r.lines == nil {
		sc := bufio.NewScanner(r.stream)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		r.lines = &Lines{sc: sc}
	}
	return r.lines
}

// Close releases the underlying connection. Safe to call more than
// once and on buffered responses.
func (r *Response) Close() error {
	if r.stream == nil {
		return nil
	}
	err := r.stream.Close()
	r.stream = nil
	return err
}

// Lines iterates a streaming body one line at a time.
type Lines struct {
	sc *bufio.Scanner
}

// Next returns the next line, or false when the stream is exhausted
// or was interrupted.
func (l *Lines) Next() (string, bool) {
	if l.sc == nil || !l.sc.Scan() {
		l.sc = nil
		return "", false
	}
	return l.sc.Text(), true
}
