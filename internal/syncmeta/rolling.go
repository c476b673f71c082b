package syncmeta

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/adler32"
)

// blockSize is the fixed block size the rolling signature is computed over.
const blockSize = 64 * 1024

// SignatureBlock is one block's weak rolling checksum and strong hash, the
// pair a delta-transfer client would use to find unchanged blocks between
// two revisions of a file without re-hashing byte-for-byte.
type SignatureBlock struct {
	Weak   uint32
	Strong [sha256.Size]byte
}

// RollingSignature is the ordered sequence of block digests for a file.
type RollingSignature []SignatureBlock

// Marshal serializes the signature to a compact, order-preserving byte
// blob suitable for carrying on FileMetadata.Signature over the wire.
func (s RollingSignature) Marshal() []byte {
	out := make([]byte, 0, len(s)*(4+sha256.Size))
	var buf [4]byte
	for _, b := range s {
		binary.BigEndian.PutUint32(buf[:], b.Weak)
		out = append(out, buf[:]...)
		out = append(out, b.Strong[:]...)
	}
	return out
}

// UnmarshalRollingSignature parses the format Marshal produces.
func UnmarshalRollingSignature(data []byte) RollingSignature {
	const recordSize = 4 + sha256.Size
	sig := make(RollingSignature, 0, len(data)/recordSize)
	for off := 0; off+recordSize <= len(data); off += recordSize {
		var b SignatureBlock
		b.Weak = binary.BigEndian.Uint32(data[off : off+4])
		copy(b.Strong[:], data[off+4:off+recordSize])
		sig = append(sig, b)
	}
	return sig
}

// rollingSignatureBuilder accumulates a RollingSignature while streaming
// through io.Copy alongside the content hash.
type rollingSignatureBuilder struct {
	blocks  RollingSignature
	current []byte
}

func newRollingSignatureBuilder() *rollingSignatureBuilder {
	return &rollingSignatureBuilder{current: make([]byte, 0, blockSize)}
}

// Write implements io.Writer so the builder can sit in an io.MultiWriter
// alongside the strong content-hash writer.
func (b *rollingSignatureBuilder) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		room := blockSize - len(b.current)
		take := len(p)
		if take > room {
			take = room
		}
		b.current = append(b.current, p[:take]...)
		p = p[take:]
		if len(b.current) == blockSize {
			b.flush()
		}
	}
	return n, nil
}

func (b *rollingSignatureBuilder) flush() {
	if len(b.current) == 0 {
		return
	}
	b.blocks = append(b.blocks, SignatureBlock{
		Weak:   adler32.Checksum(b.current),
		Strong: sha256.Sum256(b.current),
	})
	b.current = b.current[:0]
}

// Signature finalizes and returns the accumulated signature, flushing any
// partial trailing block.
func (b *rollingSignatureBuilder) Signature() RollingSignature {
	b.flush()
	return b.blocks
}
