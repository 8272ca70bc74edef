package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// framePrefix marks a candidate event frame; other lines are keep-alives or
// comments and are discarded.
const framePrefix = "data: "

// maxFrameLen bounds a single frame line. Longer lines are discarded in
// place like any other malformed frame, so one runaway frame cannot poison
// the rest of the stream.
const maxFrameLen = 1024 * 1024

var inboundTypes = map[EventType]struct{}{
	EventTextChunk:         {},
	EventToolUse:           {},
	EventToolResult:        {},
	EventStreamingComplete: {},
	EventError:             {},
}

// Decoder turns one agent invocation's line stream into a finite,
// non-restartable sequence of events. Malformed frames and unknown
// discriminators are skipped so that new server-side event kinds never
// break the client.
type Decoder struct {
	reader    *bufio.Reader
	malformed int
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next decoded event. It returns io.EOF when the underlying
// transport closes; there is no end-of-stream sentinel frame.
func (d *Decoder) Next() (*Event, error) {
	for {
		line, err := d.readLine()
		if line != "" {
			if ev := d.decodeFrame(line); ev != nil {
				return ev, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
	}
}

func (d *Decoder) decodeFrame(line string) *Event {
	if !strings.HasPrefix(line, framePrefix) {
		return nil
	}

	var ev Event
	if err := json.Unmarshal([]byte(line[len(framePrefix):]), &ev); err != nil {
		d.malformed++
		return nil
	}
	if _, ok := inboundTypes[ev.Type]; !ok {
		return nil
	}
	return &ev
}

// readLine returns the next line without its terminator. A line exceeding
// maxFrameLen is consumed and dropped; when it looked like a frame it is
// counted as malformed.
func (d *Decoder) readLine() (string, error) {
	var buf []byte
	dropping := false

	for {
		chunk, err := d.reader.ReadSlice('\n')
		if !dropping {
			buf = append(buf, chunk...)
			if len(buf) > maxFrameLen {
				if strings.HasPrefix(string(buf[:len(framePrefix)]), framePrefix) {
					d.malformed++
				}
				buf = nil
				dropping = true
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return strings.TrimRight(string(buf), "\r\n"), err
	}
}

// Malformed reports how many candidate frames failed to parse and were
// dropped.
func (d *Decoder) Malformed() int {
	return d.malformed
}
