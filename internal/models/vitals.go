package models

import "time"

// Severity is the derived urgency tier of a vitals event. It is never
// set by a producer; the triage engine assigns it during fan-out.
type Severity string

const (
	SeverityStable   Severity = "stable"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// rank orders tiers from least to most urgent.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityModerate:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is at least as urgent as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// BloodPressure holds a systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// VitalSigns is one set of physiological readings for a patient.
type VitalSigns struct {
	HeartRate       int           `json:"heartRate"`       // beats per minute
	SpO2            int           `json:"spo2"`            // oxygen saturation, percent
	BloodPressure   BloodPressure `json:"bloodPressure"`   // mmHg
	Temperature     float64       `json:"temperature"`     // degrees Celsius
	RespiratoryRate int           `json:"respiratoryRate"` // breaths per minute
}

// VitalsRequest is the transmit_vitals payload from a source connection.
type VitalsRequest struct {
	PatientID     string `json:"patientId"`
	PatientName   string `json:"patientName"`
	VitalSigns    // readings promote to the top level of the payload
	AmbulanceID   string `json:"ambulanceId"`
	ParamedicName string `json:"paramedicName,omitempty"`
}

// VitalsEvent is one admitted, classified transmission broadcast to
// subscribers. Immutable once built; every transmission, synthetic ones
// included, produces a fresh event.
type VitalsEvent struct {
	PatientID        string        `json:"patientId"`
	PatientName      string        `json:"patientName"`
	HeartRate        int           `json:"heartRate"`
	SpO2             int           `json:"spo2"`
	BloodPressure    BloodPressure `json:"bloodPressure"`
	Temperature      float64       `json:"temperature"`
	RespiratoryRate  int           `json:"respiratoryRate"`
	AmbulanceID      string        `json:"ambulanceId"`
	ParamedicName    string        `json:"paramedicName,omitempty"`
	EmergencyLevel   Severity      `json:"emergencyLevel"`
	Timestamp        time.Time     `json:"timestamp"`
	TransmissionType string        `json:"transmissionType"`
	TransmissionID   string        `json:"transmissionId"`
	Sequence         int           `json:"simulationCount,omitempty"`
}

// Vitals extracts the reading set from the event.
func (e VitalsEvent) Vitals() VitalSigns {
	return VitalSigns{
		HeartRate:       e.HeartRate,
		SpO2:            e.SpO2,
		BloodPressure:   e.BloodPressure,
		Temperature:     e.Temperature,
		RespiratoryRate: e.RespiratoryRate,
	}
}

// VitalsAck confirms or rejects a transmit_vitals submission.
type VitalsAck struct {
	Status         string    `json:"status"`
	Message        string    `json:"message"`
	TransmissionID string    `json:"transmissionId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
