// internal/protocol/line_reader.go
package protocol

import (
	"bufio"
	"io"
)

// MaxLineLength bounds a single text line. Longer lines are consumed and
// reported as empty so the parser discards them.
const MaxLineLength = 1024

type lineReader struct {
	reader *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReaderSize(r, 4096)}
}

// readLine returns the next line without its terminator. A final line
// without terminator is returned before io.EOF.
func (lr *lineReader) readLine() (string, error) {
	var line []byte
	overflow := false

	for {
		chunk, isPrefix, err := lr.reader.ReadLine()
		if err != nil {
			return "", err
		}

		if !overflow {
			if len(line)+len(chunk) > MaxLineLength {
				overflow = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}

		if !isPrefix {
			break
		}
	}

	if overflow {
		return "", nil
	}
	return string(line), nil
}
