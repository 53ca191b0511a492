// Package triage derives the severity tier of a vitals reading set.
//
// Five independent bands each contribute penalty points; the summed score
// maps to a tier. The function is pure and deterministic so the same
// readings always classify identically, on the server and anywhere else.
package triage

import "github.com/emsgrid/vitals-relay/internal/models"

const (
	criticalScore = 3
	moderateScore = 2
)

// Classify scores the five vital-sign bands and returns the tier.
func Classify(v models.VitalSigns) models.Severity {
	score := heartRatePoints(v.HeartRate) +
		oxygenPoints(v.SpO2) +
		bloodPressurePoints(v.BloodPressure) +
		temperaturePoints(v.Temperature) +
		respiratoryPoints(v.RespiratoryRate)

	switch {
	case score >= criticalScore:
		return models.SeverityCritical
	case score >= moderateScore:
		return models.SeverityModerate
	default:
		return models.SeverityStable
	}
}

func heartRatePoints(bpm int) int {
	switch {
	case bpm < 50 || bpm > 130:
		return 2
	case bpm < 60 || bpm > 100:
		return 1
	default:
		return 0
	}
}

func oxygenPoints(spo2 int) int {
	switch {
	case spo2 < 90:
		return 2
	case spo2 < 95:
		return 1
	default:
		return 0
	}
}

func bloodPressurePoints(bp models.BloodPressure) int {
	switch {
	case bp.Systolic > 180 || bp.Systolic < 90 || bp.Diastolic > 120 || bp.Diastolic < 60:
		return 2
	case bp.Systolic > 140 || bp.Systolic < 100 || bp.Diastolic > 90 || bp.Diastolic < 70:
		return 1
	default:
		return 0
	}
}

func temperaturePoints(celsius float64) int {
	switch {
	case celsius > 39.5 || celsius < 35:
		return 2
	case celsius > 38 || celsius < 36:
		return 1
	default:
		return 0
	}
}

func respiratoryPoints(breaths int) int {
	switch {
	case breaths < 10 || breaths > 30:
		return 2
	case breaths < 12 || breaths > 24:
		return 1
	default:
		return 0
	}
}
