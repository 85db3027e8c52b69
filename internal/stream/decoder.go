package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"rag-chatbot/internal/schema"
)

const dataPrefix = "data: "

// Decoder reads chunks from an event stream body.
type Decoder struct {
	sc *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Decoder{sc: sc}
}

// Next returns the next chunk. Lines without the data prefix are ignored.
// It returns io.EOF at the end of the body.
func (d *Decoder) Next() (schema.StreamChunk, error) {
	for d.sc.Scan() {
		line := d.sc.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		var c schema.StreamChunk
		if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &c); err != nil {
			return schema.StreamChunk{}, fmt.Errorf("decode chunk: %w", err)
		}
		return c, nil
	}
	if err := d.sc.Err(); err != nil {
		return schema.StreamChunk{}, err
	}
	return schema.StreamChunk{}, io.EOF
}

// ReadAll decodes every chunk until the end of the body.
func ReadAll(r io.Reader) ([]schema.StreamChunk, error) {
	d := NewDecoder(r)
	var out []schema.StreamChunk
	for {
		c, err := d.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}
