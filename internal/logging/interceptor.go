// Package logging wires up the daemon's structured logger: a colorized
// stdout handler plus a line-numbered file handler, fanned out together.
package logging

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// lineInterceptor implements io.Writer, prefixing every line written to it
// with a monotonic sequence number and timestamp before forwarding it to
// target — used so the file handler's output stays greppable even though
// slog.TextHandler doesn't number lines itself.
type lineInterceptor struct {
	target          io.Writer
	sequenceNumber  *atomic.Uint64
	interceptBuf    *bytes.Buffer
	interceptReader *bufio.Reader
}

// newLineInterceptor wraps target, numbering and timestamping each line
// written through it before forwarding the bytes along.
func newLineInterceptor(target io.Writer) *lineInterceptor {
	buf := &bytes.Buffer{}
	return &lineInterceptor{
		target:          target,
		sequenceNumber:  &atomic.Uint64{},
		interceptBuf:    buf,
		interceptReader: bufio.NewReader(buf),
	}
}

func (i *lineInterceptor) writeFormattedLine(line []byte) (int, error) {
	lineNum := i.sequenceNumber.Add(1)
	totalWritten := 0

	lineNumStr := slog.Uint64("line", lineNum).String() + " "
	n, err := io.WriteString(i.target, lineNumStr)
	totalWritten += n
	if err != nil {
		return totalWritten, err
	}

	timeStr := slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
	n, err = io.WriteString(i.target, timeStr)
	totalWritten += n
	if err != nil {
		return totalWritten, err
	}

	n, err = i.target.Write(line)
	totalWritten += n
	return totalWritten, err
}

// Write implements io.Writer, buffering partial lines and formatting each
// complete one as it becomes available.
func (i *lineInterceptor) Write(p []byte) (n int, err error) {
	_, err = i.interceptBuf.Write(p)
	if err != nil {
		return 0, err
	}

	totalWritten := 0
	for {
		idx := bytes.IndexByte(i.interceptBuf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := i.interceptBuf.Next(idx + 1)
		n, err = i.writeFormattedLine(line)
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}
	}

	return totalWritten, nil
}

// Close flushes any trailing, newline-less data still in the buffer.
func (i *lineInterceptor) Close() error {
	remaining, err := io.ReadAll(i.interceptReader)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		_, err = i.writeFormattedLine(remaining)
	}
	return err
}
