package config

import (
	"encoding/json"
	"strconv"

	"github.com/docker/go-units"
)

// SizeArgument parses human-readable sizes ("10MB", "512k") from flags and
// config values.
type SizeArgument struct {
	Size int64 `arg:"" help:"size in bytes"`
}

// UnmarshalText is used by kong for command line flags.
func (s *SizeArgument) UnmarshalText(text []byte) (err error) {
	s.Size, err = units.FromHumanSize(string(text))
	return
}

// UnmarshalJSON accepts either a bare byte count or a human-readable string.
func (s *SizeArgument) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		return s.UnmarshalText([]byte(raw))
	}
	return json.Unmarshal(data, &s.Size)
}

func (s SizeArgument) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(s.Size, 10)), nil
}
