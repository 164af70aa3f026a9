// Package wire implements the length-delimited tagged record framing used
// between every pair of gulmd processes (and their GFS/GFS2 clients): a
// stream-based codec of big-endian primitives, byte arrays, opaque
// strings, IPv6 addresses, and bracketed lists, opcode-first (spec §4.1).
package wire

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
)

// DefaultMaxFrame bounds any single length-prefixed field (byte array or
// string). Declaring a longer field yields ErrFrameTooLarge instead of an
// unbounded allocation.
const DefaultMaxFrame = 1 << 20

// list bracket tags. Not an opcode; these only ever appear where a List
// primitive was written.
const (
	tagListStart byte = 0xFE
	tagListStop  byte = 0xFF
)

// Reader decodes primitives off a byte stream. It is not safe for
// concurrent use; each connection owns exactly one Reader (§5: ownership
// is single-task).
type Reader struct {
	br       *bufio.Reader
	maxFrame uint32
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r), maxFrame: DefaultMaxFrame}
}

// SetMaxFrame overrides DefaultMaxFrame, e.g. from Config.LTHighLocks-derived
// sizing.
func (r *Reader) SetMaxFrame(n uint32) { r.maxFrame = n }

func wrapShortRead(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrIncompleteFrame
	}
	return err
}

func (r *Reader) readFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, wrapShortRead(err)
	}
	return buf, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, wrapShortRead(err)
	}
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.readFull(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.readFull(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.readFull(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadOpcode is ReadUint32 under a name that documents intent: every
// message begins with one of these.
func (r *Reader) ReadOpcode() (Opcode, error) {
	v, err := r.ReadUint32()
	return Opcode(v), err
}

// ReadBytes reads a 32-bit length prefix followed by that many bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > r.maxFrame {
		return nil, ErrFrameTooLarge
	}
	if n == 0 {
		return []byte{}, nil
	}
	return r.readFull(int(n))
}

// ReadString reads a byte array and strips exactly one trailing NUL from
// the presented value, per §4.1 ("identical to byte arrays with a null
// terminator stripped").
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b), nil
}

// ReadIPv6 reads a fixed 16-byte address. IPv4 addresses are carried
// v4-mapped (spec §3) and round-trip through net.IP.To4 normally.
func (r *Reader) ReadIPv6() (net.IP, error) {
	b, err := r.readFull(16)
	if err != nil {
		return nil, err
	}
	return net.IP(b), nil
}

// ReadListStart consumes the list-start marker, or returns ErrProtocol if
// the next byte isn't one.
func (r *Reader) ReadListStart() error {
	tag, err := r.ReadUint8()
	if err != nil {
		return err
	}
	if tag != tagListStart {
		return ErrProtocol
	}
	return nil
}

// MoreListItems peeks the next byte: if it is the list-stop marker, it is
// consumed and MoreListItems returns false; otherwise the byte is left
// unread and MoreListItems returns true so the caller decodes one more
// item.
func (r *Reader) MoreListItems() (bool, error) {
	b, err := r.br.Peek(1)
	if err != nil {
		return false, wrapShortRead(err)
	}
	if b[0] == tagListStop {
		_, _ = r.br.Discard(1)
		return false, nil
	}
	return true, nil
}

// Writer encodes primitives onto a byte stream, flushed explicitly by the
// caller once a full message has been written (so a partially built
// message is never observed mid-stream by the peer).
type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

func (w *Writer) Flush() error { return w.bw.Flush() }

func (w *Writer) WriteUint8(v uint8) error {
	return w.bw.WriteByte(v)
}

func (w *Writer) WriteUint16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.bw.Write(b[:])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.bw.Write(b[:])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.bw.Write(b[:])
	return err
}

func (w *Writer) WriteOpcode(op Opcode) error {
	return w.WriteUint32(uint32(op))
}

func (w *Writer) WriteBytes(b []byte) error {
	if err := w.WriteUint32(uint32(len(b))); err != nil {
		return err
	}
	_, err := w.bw.Write(b)
	return err
}

// WriteString appends a single NUL terminator before encoding, mirroring
// what ReadString strips.
func (w *Writer) WriteString(s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return w.WriteBytes(buf)
}

// WriteIPv6 writes the 16-byte form; IPv4 addresses must be v4-mapped by
// the caller (net.IP.To16()).
func (w *Writer) WriteIPv6(ip net.IP) error {
	v6 := ip.To16()
	if v6 == nil {
		v6 = make([]byte, 16)
	}
	_, err := w.bw.Write(v6)
	return err
}

func (w *Writer) WriteListStart() error { return w.WriteUint8(tagListStart) }
func (w *Writer) WriteListStop() error  { return w.WriteUint8(tagListStop) }
