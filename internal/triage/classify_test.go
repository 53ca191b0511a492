package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emsgrid/vitals-relay/internal/models"
)

func normal() models.VitalSigns {
	return models.VitalSigns{
		HeartRate:       75,
		SpO2:            98,
		BloodPressure:   models.BloodPressure{Systolic: 120, Diastolic: 80},
		Temperature:     37.0,
		RespiratoryRate: 16,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.VitalSigns)
		want   models.Severity
	}{
		{
			name:   "all readings in range",
			mutate: func(v *models.VitalSigns) {},
			want:   models.SeverityStable,
		},
		{
			// Tachycardia alone scores 2, which is moderate, not critical.
			name:   "extreme heart rate only",
			mutate: func(v *models.VitalSigns) { v.HeartRate = 160 },
			want:   models.SeverityModerate,
		},
		{
			name:   "mild heart rate deviation only",
			mutate: func(v *models.VitalSigns) { v.HeartRate = 105 },
			want:   models.SeverityStable,
		},
		{
			name: "two mild deviations",
			mutate: func(v *models.VitalSigns) {
				v.HeartRate = 105
				v.SpO2 = 93
			},
			want: models.SeverityModerate,
		},
		{
			name: "extreme heart rate plus mild saturation",
			mutate: func(v *models.VitalSigns) {
				v.HeartRate = 160
				v.SpO2 = 93
			},
			want: models.SeverityCritical,
		},
		{
			name: "severe hypoxia and hypotension",
			mutate: func(v *models.VitalSigns) {
				v.SpO2 = 85
				v.BloodPressure = models.BloodPressure{Systolic: 85, Diastolic: 50}
			},
			want: models.SeverityCritical,
		},
		{
			name:   "high fever only",
			mutate: func(v *models.VitalSigns) { v.Temperature = 40.1 },
			want:   models.SeverityModerate,
		},
		{
			name: "fever with elevated respiration",
			mutate: func(v *models.VitalSigns) {
				v.Temperature = 40.1
				v.RespiratoryRate = 26
			},
			want: models.SeverityCritical,
		},
		{
			name:   "respiratory arrest range",
			mutate: func(v *models.VitalSigns) { v.RespiratoryRate = 8 },
			want:   models.SeverityModerate,
		},
		{
			name:   "band edges are in range",
			mutate: func(v *models.VitalSigns) { v.HeartRate = 100; v.RespiratoryRate = 24 },
			want:   models.SeverityStable,
		},
		{
			name: "hypertensive crisis plus mild temperature",
			mutate: func(v *models.VitalSigns) {
				v.BloodPressure = models.BloodPressure{Systolic: 190, Diastolic: 95}
				v.Temperature = 38.5
			},
			want: models.SeverityCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := normal()
			tt.mutate(&v)
			assert.Equal(t, tt.want, Classify(v))
		})
	}
}

// Classification must be a pure function of the readings: repeated calls
// with identical input always agree.
func TestClassify_Deterministic(t *testing.T) {
	v := models.VitalSigns{
		HeartRate:       160,
		SpO2:            98,
		BloodPressure:   models.BloodPressure{Systolic: 120, Diastolic: 80},
		Temperature:     37,
		RespiratoryRate: 16,
	}
	first := Classify(v)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(v))
	}
	assert.Equal(t, models.SeverityModerate, first)
}
