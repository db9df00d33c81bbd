package oracle

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// fieldReader reads little-endian borsh fields and keeps the first error.
type fieldReader struct {
	d   *bin.Decoder
	err error
}

func newFieldReader(data []byte) *fieldReader {
	return &fieldReader{d: bin.NewBorshDecoder(data)}
}

func (r *fieldReader) pubkey() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.d.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (r *fieldReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.d.ReadBytes(n)
	r.err = err
	return b
}

func (r *fieldReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint8()
	r.err = err
	return v
}

func (r *fieldReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint32(bin.LE)
	r.err = err
	return v
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.d.ReadUint64(bin.LE)
	r.err = err
	return v
}
