// Package fixedpoint implements the scaled-integer arithmetic behind the yield
// accumulator. Values are unsigned, scaled by Precision and bounded to 128 bits;
// every operation reports overflow instead of wrapping.
package fixedpoint

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Precision is the fixed-point scale (10^9) of yield-per-share values.
const Precision uint64 = 1_000_000_000

// MaxBits is the storage width of a Scaled value.
const MaxBits = 128

// ByteLen is the length of the big-endian encoding produced by Bytes16.
const ByteLen = MaxBits / 8

var (
	ErrOverflow       = errors.New("Arithmetic overflow")
	ErrUnderflow      = errors.New("Arithmetic underflow")
	ErrDivisionByZero = errors.New("Division by zero")
	ErrInvalidValue   = errors.New("Invalid fixed-point value")
)

var precision = uint256.NewInt(Precision)

// Scaled is an unsigned fixed-point number: the represented quantity is n / Precision.
// The zero value is 0.
type Scaled struct {
	n uint256.Int
}

// Zero returns the scaled zero.
func Zero() Scaled { return Scaled{} }

// FromRaw wraps an already scaled integer.
func FromRaw(raw uint64) Scaled {
	var s Scaled
	s.n.SetUint64(raw)
	return s
}

// Parse reads the decimal form of a raw scaled integer.
func Parse(str string) (Scaled, error) {
	b, ok := new(big.Int).SetString(str, 10)
	if !ok || b.Sign() < 0 {
		return Scaled{}, fmt.Errorf("%w: %q", ErrInvalidValue, str)
	}
	n, overflow := uint256.FromBig(b)
	if overflow || n.BitLen() > MaxBits {
		return Scaled{}, fmt.Errorf("%w: %q", ErrOverflow, str)
	}
	return Scaled{n: *n}, nil
}

// FromBytes16 decodes the big-endian encoding written by Bytes16.
func FromBytes16(b []byte) (Scaled, error) {
	if len(b) != ByteLen {
		return Scaled{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidValue, ByteLen, len(b))
	}
	var s Scaled
	s.n.SetBytes(b)
	return s, nil
}

// PerShare returns floor(amount * Precision / supply), the accumulator increment
// for distributing amount over supply shares.
func PerShare(amount, supply uint64) (Scaled, error) {
	if supply == 0 {
		return Scaled{}, ErrDivisionByZero
	}
	var num uint256.Int
	if _, overflow := num.MulOverflow(uint256.NewInt(amount), precision); overflow {
		return Scaled{}, ErrOverflow
	}
	var s Scaled
	s.n.Div(&num, uint256.NewInt(supply))
	return s, s.check()
}

// Add returns s + o, failing when the sum does not fit in MaxBits.
func (s Scaled) Add(o Scaled) (Scaled, error) {
	var r Scaled
	if _, overflow := r.n.AddOverflow(&s.n, &o.n); overflow {
		return Scaled{}, ErrOverflow
	}
	return r, r.check()
}

// Sub returns s - o. Negative results are an error, never a wrap.
func (s Scaled) Sub(o Scaled) (Scaled, error) {
	if s.n.Lt(&o.n) {
		return Scaled{}, ErrUnderflow
	}
	var r Scaled
	r.n.Sub(&s.n, &o.n)
	return r, nil
}

// MulUnits returns floor(s * units / Precision) as a whole unit count.
func (s Scaled) MulUnits(units uint64) (uint64, error) {
	var prod uint256.Int
	if _, overflow := prod.MulOverflow(&s.n, uint256.NewInt(units)); overflow {
		return 0, ErrOverflow
	}
	prod.Div(&prod, precision)
	if !prod.IsUint64() {
		return 0, ErrOverflow
	}
	return prod.Uint64(), nil
}

// Cmp compares s and o and returns -1, 0 or +1.
func (s Scaled) Cmp(o Scaled) int { return s.n.Cmp(&o.n) }

// IsZero reports whether s is 0.
func (s Scaled) IsZero() bool { return s.n.IsZero() }

// String returns the raw scaled integer in decimal.
func (s Scaled) String() string { return s.n.ToBig().String() }

// Bytes16 returns the 16-byte big-endian encoding.
func (s Scaled) Bytes16() [ByteLen]byte {
	full := s.n.Bytes32()
	var out [ByteLen]byte
	copy(out[:], full[32-ByteLen:])
	return out
}

func (s Scaled) check() error {
	if s.n.BitLen() > MaxBits {
		return ErrOverflow
	}
	return nil
}

// Value stores the decimal string; text columns keep all 128 bits on every driver.
func (s Scaled) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *Scaled) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = Scaled{}
		return nil
	case string:
		return s.parseInto(v)
	case []byte:
		return s.parseInto(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidValue, v)
		}
		*s = FromRaw(uint64(v))
		return nil
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, value)
	}
}

func (s *Scaled) parseInto(str string) error {
	p, err := Parse(str)
	if err != nil {
		return err
	}
	*s = p
	return nil
}

// MarshalJSON encodes as a JSON string so no client truncates it to a float.
func (s Scaled) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string form written by MarshalJSON.
func (s *Scaled) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return s.parseInto(str)
}
