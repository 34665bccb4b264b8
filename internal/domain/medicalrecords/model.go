package medicalrecords

import "time"

// MedicalRecord es una visita veterinaria registrada para una mascota.
type MedicalRecord struct {
	ID                   string    `json:"id"`
	PetID                string    `json:"pet_id"`
	VeterinarianID       string    `json:"veterinarian_id"`
	DateOfVisit          time.Time `json:"date_of_visit"`
	ReasonForVisit       string    `json:"reason_for_visit"`
	Diagnosis            string    `json:"diagnosis"`
	MedicationPrescribed []string  `json:"medication_prescribed"`
	Notes                string    `json:"notes,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type CreateInput struct {
	DateOfVisit          *time.Time `json:"date_of_visit,omitempty"`
	ReasonForVisit       string     `json:"reason_for_visit"`
	Diagnosis            string     `json:"diagnosis"`
	MedicationPrescribed []string   `json:"medication_prescribed"`
	Notes                string     `json:"notes,omitempty"`
}

type UpdateInput struct {
	DateOfVisit          *time.Time `json:"date_of_visit,omitempty"`
	ReasonForVisit       *string    `json:"reason_for_visit,omitempty"`
	Diagnosis            *string    `json:"diagnosis,omitempty"`
	MedicationPrescribed *[]string  `json:"medication_prescribed,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
}
