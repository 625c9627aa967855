package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
)

// Units is a whole-unit count (shares, payment units, token supply). It is stored as
// a decimal string because SQL integer columns are signed and reject values >= 2^63.
type Units uint64

// Value implements driver.Valuer.
func (u Units) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

// Scan implements sql.Scanner.
func (u *Units) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = 0
		return nil
	case string:
		return u.parse(v)
	case []byte:
		return u.parse(string(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("negative unit count %d", v)
		}
		*u = Units(v)
		return nil
	default:
		return fmt.Errorf("unsupported unit count type %T", value)
	}
}

func (u *Units) parse(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unit count %q: %w", s, err)
	}
	*u = Units(n)
	return nil
}
