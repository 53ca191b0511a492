// Package geo converts raw NMEA sentences from field-unit GPS receivers
// into positions.
package geo

import (
	"errors"
	"fmt"

	"github.com/adrianmo/go-nmea"
)

// Position is a parsed geographic fix.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // HDOP when available, 0 otherwise
	Speed     float64 // km/h when available, 0 otherwise
	Heading   float64 // degrees true when available, 0 otherwise
}

// ParsePosition extracts a position from one GGA or RMC sentence.
func ParsePosition(sentence string) (Position, error) {
	parsed, err := nmea.Parse(sentence)
	if err != nil {
		return Position{}, fmt.Errorf("invalid NMEA sentence: %w", err)
	}

	switch s := parsed.(type) {
	case nmea.GGA:
		return Position{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Accuracy:  float64(s.HDOP),
		}, nil
	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return Position{}, errors.New("RMC sentence reports invalid fix")
		}
		return Position{
			Latitude:  s.Latitude,
			Longitude: s.Longitude,
			Speed:     float64(s.Speed) * 1.852, // knots to km/h
			Heading:   float64(s.Course),
		}, nil
	default:
		return Position{}, fmt.Errorf("unsupported NMEA sentence type %q", parsed.DataType())
	}
}
