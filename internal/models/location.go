package models

import "time"

// LocationRequest is the update_location payload. A unit either reports
// coordinates directly or forwards a raw NMEA sentence from its GPS
// receiver for server-side parsing.
type LocationRequest struct {
	AmbulanceID string  `json:"ambulanceId"`
	Latitude    float64 `json:"lat"`
	Longitude   float64 `json:"lng"`
	Speed       float64 `json:"speed,omitempty"`
	Heading     float64 `json:"heading,omitempty"`
	NMEA        string  `json:"nmea,omitempty"`
}

// LocationUpdate is the stamped position broadcast. Position updates are
// not room-scoped: every connected party except the sender receives them.
type LocationUpdate struct {
	AmbulanceID  string    `json:"ambulanceId"`
	Latitude     float64   `json:"lat"`
	Longitude    float64   `json:"lng"`
	Speed        float64   `json:"speed,omitempty"`
	Heading      float64   `json:"heading,omitempty"`
	Accuracy     float64   `json:"accuracy,omitempty"`
	ConnectionID string    `json:"connectionId"`
	Timestamp    time.Time `json:"timestamp"`
}
