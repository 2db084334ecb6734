package protocol

import (
	"bufio"
	"errors"
	"io"
)

// ReadFrame reads up to and including the next terminator. A frame longer
// than MaxFrameSize is discarded through its terminator and reported as
// ErrFrameTooLarge; the reader stays usable. io.EOF is returned only on a
// clean frame boundary.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var frame []byte
	tooLarge := false
	for {
		chunk, err := r.ReadSlice(Terminator)
		if !tooLarge {
			if len(frame)+len(chunk) > MaxFrameSize {
				tooLarge, frame = true, nil
			} else {
				frame = append(frame, chunk...)
			}
		}
		switch {
		case err == nil && tooLarge:
			return nil, ErrFrameTooLarge
		case err == nil:
			return frame, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(frame) == 0 && !tooLarge:
			return nil, io.EOF
		case errors.Is(err, io.EOF):
			return nil, io.ErrUnexpectedEOF
		default:
			return nil, err
		}
	}
}
