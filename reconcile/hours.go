package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Hours is an hour count decoded leniently from JSON. Null decodes to 0, a
// numeric string is parsed, and anything that is not a finite number is
// kept as NaN so the caller can log it before treating it as 0.
type Hours float64

func (h *Hours) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = 0
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*h = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*h = Hours(math.NaN())
			return nil
		}
		*h = Hours(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("hours: %w", err)
	}
	*h = Hours(f)
	return nil
}

// Value returns the hours as a float and whether they were a usable number.
// Unusable values come back as 0.
func (h Hours) Value() (float64, bool) {
	f := float64(h)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
