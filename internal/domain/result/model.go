package result

import "time"

const (
	KindLab     = "lab"
	KindImaging = "imaging"
)

// MaxConclusionLength caps an imaging conclusion, in characters.
const MaxConclusionLength = 1000

type LabTestResult struct {
	ID             string           `json:"result_id"`
	IndicationID   string           `json:"indication_id"`
	PatientID      string           `json:"patient_id"`
	DoctorID       *string          `json:"doctor_id,omitempty"`
	Conclusion     *string          `json:"conclusion,omitempty"`
	ServiceResults []*ServiceResult `json:"service_results"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ServiceResult is the measured value for one service item of the
// indication.
type ServiceResult struct {
	ID                  string  `json:"id"`
	ServiceIndicationID string  `json:"service_indication_id"`
	TestResult          float64 `json:"test_result"`
	Unit                *string `json:"unit,omitempty"`
	ReferenceRange      *string `json:"reference_range,omitempty"`
	Note                *string `json:"note,omitempty"`
}

type ImagingResult struct {
	ID           string    `json:"result_id"`
	IndicationID string    `json:"indication_id"`
	PatientID    string    `json:"patient_id"`
	DoctorID     *string   `json:"doctor_id,omitempty"`
	Conclusion   *string   `json:"conclusion,omitempty"`
	Result       *string   `json:"result,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Files        []string  `json:"files"`
	CreatedAt    time.Time `json:"created_at"`
}

// Outcome is whichever result an indication ended with.
type Outcome struct {
	Kind    string         `json:"kind"`
	Lab     *LabTestResult `json:"lab_test_result,omitempty"`
	Imaging *ImagingResult `json:"imaging_result,omitempty"`
}
