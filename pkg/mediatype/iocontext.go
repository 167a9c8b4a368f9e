package mediatype

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/jmylchreest/mediacore/pkg/mediaerr"
)

// SeekWhence selects the origin for IoContext.Seek (spec.md §6).
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// IoContext is the byte-stream collaborator every demuxer pulls from
// (spec.md §6). Implementations wrap a file, network socket, or in-memory
// buffer; mediacore never opens files or sockets itself.
type IoContext interface {
	ReadExact(buf []byte) error
	ReadU8() (byte, error)
	ReadU16LE() (uint16, error)
	ReadU16BE() (uint16, error)
	ReadU32LE() (uint32, error)
	ReadU32BE() (uint32, error)
	ReadTag() ([4]byte, error)
	ReadBytes(n int) ([]byte, error)
	Skip(n int64) error
	Position() int64
	Seek(whence SeekWhence, offset int64) (int64, error)
	IsSeekable() bool
}

// ReaderIoContext adapts an io.ReadSeeker (or plain io.Reader, in which case
// IsSeekable reports false and Seek always fails) into an IoContext.
type ReaderIoContext struct {
	r    io.Reader
	rs   io.ReadSeeker
	pos  int64
}

// NewReaderIoContext wraps r. If r also implements io.Seeker, seeking works.
func NewReaderIoContext(r io.Reader) *ReaderIoContext {
	ctx := &ReaderIoContext{r: r}
	if rs, ok := r.(io.ReadSeeker); ok {
		ctx.rs = rs
	}
	return ctx
}

func (c *ReaderIoContext) ReadExact(buf []byte) error {
	_, err := io.ReadFull(c.r, buf)
	c.pos += int64(len(buf))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return mediaerr.ErrEof
		}
		return mediaerr.IO(err)
	}
	return nil
}

func (c *ReaderIoContext) ReadU8() (byte, error) {
	var b [1]byte
	if err := c.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *ReaderIoContext) ReadU16LE() (uint16, error) {
	var b [2]byte
	if err := c.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (c *ReaderIoContext) ReadU16BE() (uint16, error) {
	var b [2]byte
	if err := c.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (c *ReaderIoContext) ReadU32LE() (uint32, error) {
	var b [4]byte
	if err := c.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (c *ReaderIoContext) ReadU32BE() (uint32, error) {
	var b [4]byte
	if err := c.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (c *ReaderIoContext) ReadTag() ([4]byte, error) {
	var b [4]byte
	err := c.ReadExact(b[:])
	return b, err
}

func (c *ReaderIoContext) ReadBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := c.ReadExact(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *ReaderIoContext) Skip(n int64) error {
	if c.rs != nil {
		_, err := c.rs.Seek(n, io.SeekCurrent)
		if err != nil {
			return mediaerr.IO(err)
		}
		c.pos += n
		return nil
	}
	_, err := io.CopyN(io.Discard, c.r, n)
	c.pos += n
	if err != nil {
		if errors.Is(err, io.EOF) {
			return mediaerr.ErrEof
		}
		return mediaerr.IO(err)
	}
	return nil
}

func (c *ReaderIoContext) Position() int64 { return c.pos }

func (c *ReaderIoContext) Seek(whence SeekWhence, offset int64) (int64, error) {
	if c.rs == nil {
		return 0, mediaerr.Unsupported("underlying reader is not seekable")
	}
	var w int
	switch whence {
	case SeekStart:
		w = io.SeekStart
	case SeekCurrent:
		w = io.SeekCurrent
	case SeekEnd:
		w = io.SeekEnd
	}
	pos, err := c.rs.Seek(offset, w)
	if err != nil {
		return 0, mediaerr.IO(err)
	}
	c.pos = pos
	return pos, nil
}

func (c *ReaderIoContext) IsSeekable() bool { return c.rs != nil }
