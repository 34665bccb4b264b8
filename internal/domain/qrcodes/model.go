package qrcodes

import "time"

// EncodedContent es lo que va impreso dentro del QR de la chapita.
type EncodedContent struct {
	PetName          string   `json:"pet_name"`
	PetType          string   `json:"pet_type"`
	OwnerName        string   `json:"owner_name"`
	OwnerPhone       string   `json:"owner_phone"`
	OwnerEmail       string   `json:"owner_email"`
	OwnerAddress     string   `json:"owner_address"`
	EmergencyContact string   `json:"emergency_contact,omitempty"`
	MedicalAlerts    []string `json:"medical_alerts,omitempty"`
	PublicProfileURL string   `json:"public_profile_url"`
}

// QRCodeRecord es el QR generado para una mascota.
// QRCodeData es el PNG codificado base64.
type QRCodeRecord struct {
	ID             string         `json:"id"`
	PetID          string         `json:"pet_id"`
	QRCodeData     string         `json:"qr_code_data"`
	PublicURL      string         `json:"public_url"`
	EncodedContent EncodedContent `json:"encoded_content"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ImageDataURI arma el src embebible para el PNG del QR.
func (r QRCodeRecord) ImageDataURI() string {
	return "data:image/png;base64," + r.QRCodeData
}
