package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer

	frames := []struct {
		h    Header
		body []byte
	}{
		{Header{Codec: 1, Kind: KindRequest, Seq: 7}, []byte(`{"userId":1}`)},
		{Header{Kind: KindHeartbeat}, nil},
		{Header{Codec: 0, Kind: KindResponse, Seq: 7}, []byte(`null`)},
	}
	for _, f := range frames {
		if err := Write(&buf, f.h, f.body); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r := NewReader(&buf, 0)
	for i, f := range frames {
		h, body, err := r.Read()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if h.Kind != f.h.Kind || h.Seq != f.h.Seq || h.Codec != f.h.Codec || int(h.BodyLen) != len(f.body) {
			t.Fatalf("frame %d: unexpected header %+v", i, h)
		}
		if !bytes.Equal(body, f.body) && len(f.body) > 0 {
			t.Fatalf("frame %d: got body %q", i, body)
		}
	}
	if _, _, err := r.Read(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReadRejects(t *testing.T) {
	valid := func() []byte {
		var buf bytes.Buffer
		_ = Write(&buf, Header{Kind: KindRequest, Seq: 1}, []byte("abc"))
		return buf.Bytes()
	}

	tests := []struct {
		name   string
		mutate func(b []byte) []byte
		check  func(error) bool
	}{
		{"magic", func(b []byte) []byte { b[0] = 'x'; return b }, func(err error) bool { return errors.Is(err, ErrBadMagic) }},
		{"version", func(b []byte) []byte { b[3] = 9; return b }, func(err error) bool { return err != nil }},
		{"kind", func(b []byte) []byte { b[5] = 7; return b }, func(err error) bool { return err != nil }},
		{"short body", func(b []byte) []byte { return b[:len(b)-1] }, func(err error) bool { return errors.Is(err, io.ErrUnexpectedEOF) }},
		{"http", func([]byte) []byte { return []byte("GET / HTTP/1.1\r\n\r\n") }, func(err error) bool { return errors.Is(err, ErrBadMagic) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Read(bytes.NewReader(tc.mutate(valid())))
			if !tc.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestReadBodyLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Header{Kind: KindRequest}, make([]byte, 64)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := NewReader(&buf, 32).Read()
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}
