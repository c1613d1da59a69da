// Package codec implements the length-prefixed chunk framing shared by
// the client stream link (spec.md §4.1, §6.2). One chunk is a 4-byte
// little-endian length header followed by exactly that many payload
// bytes; no other framing information is exchanged.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.osspkg.com/errors"
	"go.osspkg.com/ioutils/pool"
)

const headerSize = 4

// MaxChunkSize bounds a single decoded chunk, guarding against a
// corrupt or hostile length header forcing an unbounded allocation.
const MaxChunkSize = 1 << 20

// Disconnect is raised by ReceiveChunk/SendChunk whenever the peer's
// framing cannot be trusted anymore; the caller (the client read task)
// treats it as a request to tear down that connection, never the process.
type Disconnect struct {
	Reason string
}

func (e *Disconnect) Error() string {
	return fmt.Sprintf("disconnect: %s", e.Reason)
}

var headerPool = pool.New[*header](func() *header { return &header{} })

type header [headerSize]byte

func (h *header) Reset() {
	*h = header{}
}

// SendChunk writes one framed chunk: a 4-byte length header followed by
// b. Per spec.md §4.1 this does not retry a short write — a short count
// from either write is treated as a Disconnect, matching the arrangement's
// assumed local/low-latency link. Use SendChunkReliable on links where a
// short write is expected to be transient.
func SendChunk(w io.Writer, b []byte) error {
	hdrp := headerPool.Get()
	defer headerPool.Put(hdrp)

	hdr := *hdrp
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))

	if n, err := w.Write(hdr[:]); err != nil {
		return &Disconnect{Reason: fmt.Sprintf("write header: %v", err)}
	} else if n != headerSize {
		return &Disconnect{Reason: "did not arrive all at once"}
	}

	if len(b) == 0 {
		return nil
	}
	n, err := w.Write(b)
	if err != nil {
		return &Disconnect{Reason: fmt.Sprintf("write payload: %v", err)}
	}
	if n != len(b) {
		return &Disconnect{Reason: "did not arrive all at once"}
	}
	return nil
}

// SendChunkReliable behaves like SendChunk but loops on short writes
// until the full chunk is sent or an I/O error occurs, for transports
// where spec.md §9's open question is answered "retry": wide-area or
// congested links where the arrangement's network model tolerates the
// extra latency but not a dropped connection.
func SendChunkReliable(w io.Writer, b []byte) error {
	hdrp := headerPool.Get()
	defer headerPool.Put(hdrp)

	hdr := *hdrp
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))

	if err := writeFull(w, hdr[:]); err != nil {
		return &Disconnect{Reason: fmt.Sprintf("write header: %v", err)}
	}
	if err := writeFull(w, b); err != nil {
		return &Disconnect{Reason: fmt.Sprintf("write payload: %v", err)}
	}
	return nil
}

func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// ReceiveChunk reads exactly one framed chunk: a 4-byte length header
// followed by that many payload bytes. A zero-length read on the header
// signals a clean peer close; a short read at any point signals a
// malformed or truncated frame. Both raise Disconnect, never a bare I/O
// error, so callers can uniformly treat ReceiveChunk's error as "tear
// down this connection."
func ReceiveChunk(r io.Reader) ([]byte, error) {
	hdrp := headerPool.Get()
	defer headerPool.Put(hdrp)

	hdr := *hdrp
	if err := readExact(r, hdr[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(hdr[:])
	if size > MaxChunkSize {
		return nil, &Disconnect{Reason: fmt.Sprintf("chunk too large: %d bytes", size)}
	}
	if size == 0 {
		return nil, nil
	}

	buf := make([]byte, size)
	if err := readExact(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readExact issues exactly one Read call, never looping to fill buf. A
// single short or empty read is itself the Disconnect condition, matching
// SendChunk's single-Write-then-check policy: the reactor calls this only
// after epoll has already reported the fd readable (spec.md §4.2 step 3),
// so recv stays the one-shot, run-to-completion syscall spec.md §5's
// suspension-points invariant requires, never a loop that could block the
// single reactor goroutine waiting on more bytes from a stalled peer.
func readExact(r io.Reader, buf []byte) error {
	n, err := r.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return &Disconnect{Reason: "closed connection"}
		}
		return &Disconnect{Reason: fmt.Sprintf("read: %v", err)}
	}
	if n != len(buf) {
		return &Disconnect{Reason: "did not arrive all at once"}
	}
	return nil
}
