// Package assetrecord encodes the persisted form of an asset: owner, 32-byte
// content hash, URI, basis points, three 64-bit counters, the 128-bit accumulator
// and the holder snapshot map in ascending holder order. Integers are big-endian.
package assetrecord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"estate-backend/internal/pkg/fixedpoint"
)

const (
	hashSize  = 32
	valueSize = fixedpoint.ByteLen
	// owner_len(2) + hash(32) + uri_len(4) + bp(2) + 3*u64(24) + acc(16) + count(4)
	fixedSize = 2 + hashSize + 4 + 2 + 24 + valueSize + 4
)

var (
	ErrInvalidRecord    = errors.New("assetrecord: invalid record data")
	ErrTooManySnapshots = errors.New("assetrecord: snapshot capacity exceeded")
	ErrFieldTooLong     = errors.New("assetrecord: field too long")
)

// Snapshot is one holder's last observed accumulator value.
type Snapshot struct {
	Holder string            `json:"holder"`
	Value  fixedpoint.Scaled `json:"value"`
}

// Record is the decoded persisted asset.
type Record struct {
	Owner            string            `json:"owner"`
	MetadataHash     [hashSize]byte    `json:"-"`
	MetadataURI      string            `json:"metadata_uri"`
	AnnualReturnBP   uint16            `json:"annual_return_bp"`
	TotalTokens      uint64            `json:"total_tokens"`
	TokensLeft       uint64            `json:"tokens_left"`
	PricePerToken    uint64            `json:"price_per_token"`
	YieldAccumulator fixedpoint.Scaled `json:"yield_accumulator"`
	Snapshots        []Snapshot        `json:"snapshots"`
}

// Encode serializes r. Snapshots are written sorted by holder; limit > 0 bounds
// how many may be stored.
func Encode(r *Record, limit int) ([]byte, error) {
	if limit > 0 && len(r.Snapshots) > limit {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySnapshots, len(r.Snapshots), limit)
	}
	if uint64(len(r.Snapshots)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d snapshots", ErrTooManySnapshots, len(r.Snapshots))
	}
	if len(r.Owner) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: owner", ErrFieldTooLong)
	}
	if uint64(len(r.MetadataURI)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: metadata_uri", ErrFieldTooLong)
	}

	snaps := make([]Snapshot, len(r.Snapshots))
	copy(snaps, r.Snapshots)
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Holder < snaps[j].Holder })

	size := fixedSize + len(r.Owner) + len(r.MetadataURI)
	for i, s := range snaps {
		if len(s.Holder) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: holder", ErrFieldTooLong)
		}
		if i > 0 && snaps[i-1].Holder == s.Holder {
			return nil, fmt.Errorf("%w: duplicate holder %q", ErrInvalidRecord, s.Holder)
		}
		size += 2 + len(s.Holder) + valueSize
	}

	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(r.Owner)))
	buf = append(buf, r.Owner...)
	buf = append(buf, r.MetadataHash[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.MetadataURI)))
	buf = append(buf, r.MetadataURI...)
	buf = binary.BigEndian.AppendUint16(buf, r.AnnualReturnBP)
	buf = binary.BigEndian.AppendUint64(buf, r.TotalTokens)
	buf = binary.BigEndian.AppendUint64(buf, r.TokensLeft)
	buf = binary.BigEndian.AppendUint64(buf, r.PricePerToken)
	acc := r.YieldAccumulator.Bytes16()
	buf = append(buf, acc[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(snaps)))
	for _, s := range snaps {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(s.Holder)))
		buf = append(buf, s.Holder...)
		v := s.Value.Bytes16()
		buf = append(buf, v[:]...)
	}
	return buf, nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || len(r.data)-r.off < n {
		return nil, fmt.Errorf("%w: truncated at offset %d", ErrInvalidRecord, r.off)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) str(n int) (string, error) {
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) scaled() (fixedpoint.Scaled, error) {
	b, err := r.take(valueSize)
	if err != nil {
		return fixedpoint.Scaled{}, err
	}
	return fixedpoint.FromBytes16(b)
}

// Decode parses data written by Encode. Holders must be strictly ascending and
// every snapshot must be at or below the accumulator.
func Decode(data []byte) (*Record, error) {
	if len(data) < fixedSize {
		return nil, fmt.Errorf("%w: too short (%d bytes)", ErrInvalidRecord, len(data))
	}
	rd := &reader{data: data}
	rec := &Record{}

	ownerLen, err := rd.u16()
	if err != nil {
		return nil, err
	}
	if rec.Owner, err = rd.str(int(ownerLen)); err != nil {
		return nil, err
	}
	hash, err := rd.take(hashSize)
	if err != nil {
		return nil, err
	}
	copy(rec.MetadataHash[:], hash)
	uriLen, err := rd.u32()
	if err != nil {
		return nil, err
	}
	if rec.MetadataURI, err = rd.str(int(uriLen)); err != nil {
		return nil, err
	}
	if rec.AnnualReturnBP, err = rd.u16(); err != nil {
		return nil, err
	}
	if rec.TotalTokens, err = rd.u64(); err != nil {
		return nil, err
	}
	if rec.TokensLeft, err = rd.u64(); err != nil {
		return nil, err
	}
	if rec.PricePerToken, err = rd.u64(); err != nil {
		return nil, err
	}
	if rec.TokensLeft > rec.TotalTokens {
		return nil, fmt.Errorf("%w: tokens_left %d > total_tokens %d", ErrInvalidRecord, rec.TokensLeft, rec.TotalTokens)
	}
	if rec.YieldAccumulator, err = rd.scaled(); err != nil {
		return nil, err
	}
	count, err := rd.u32()
	if err != nil {
		return nil, err
	}
	// Each entry needs at least its length prefix and value.
	if uint64(count)*(2+valueSize) > uint64(len(data)-rd.off) {
		return nil, fmt.Errorf("%w: %d snapshots do not fit", ErrInvalidRecord, count)
	}

	rec.Snapshots = make([]Snapshot, 0, count)
	for i := uint32(0); i < count; i++ {
		hl, err := rd.u16()
		if err != nil {
			return nil, err
		}
		holder, err := rd.str(int(hl))
		if err != nil {
			return nil, err
		}
		v, err := rd.scaled()
		if err != nil {
			return nil, err
		}
		if n := len(rec.Snapshots); n > 0 && rec.Snapshots[n-1].Holder >= holder {
			return nil, fmt.Errorf("%w: holders out of order at %q", ErrInvalidRecord, holder)
		}
		if v.Cmp(rec.YieldAccumulator) > 0 {
			return nil, fmt.Errorf("%w: snapshot of %q above accumulator", ErrInvalidRecord, holder)
		}
		rec.Snapshots = append(rec.Snapshots, Snapshot{Holder: holder, Value: v})
	}
	if rd.off != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidRecord, len(data)-rd.off)
	}
	return rec, nil
}
