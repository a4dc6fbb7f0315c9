package uds

import (
	"bufio"
	"io"

	"ledger/pkg/exception"
)

// DefaultMaxLine bounds one newline-delimited message.
const DefaultMaxLine = 64 * 1024

// LineReader reads newline-delimited messages with a size limit.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r. A non-positive max uses DefaultMaxLine.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineReader{r: bufio.NewReaderSize(r, 4096), max: max}
}

// ReadLine returns the next message without its trailing newline. A final
// message without a newline is returned before io.EOF. A message longer than
// the limit is consumed and reported as ErrFrameTooLarge so the caller can
// keep reading.
func (l *LineReader) ReadLine() ([]byte, error) {
	var (
		line    []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := l.r.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) > 0 && !tooLong {
				return line, nil
			}
			return nil, err
		}
		if !tooLong {
			if len(line)+len(chunk) > l.max {
				tooLong = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return nil, exception.ErrFrameTooLarge
	}
	if line == nil {
		line = []byte{}
	}
	return line, nil
}

// WriteLine writes msg followed by a newline.
func WriteLine(w io.Writer, msg []byte) error {
	buf := make([]byte, 0, len(msg)+1)
	buf = append(buf, msg...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
