// Package model holds the wire-level data model of the measurement backend.
package model

// Device is owned by the backend; the client holds a read-through cached
// copy per session.
//
//nolint:tagliatelle // external API
type Device struct {
	DeviceID    string `json:"device_id"`
	ThingName   string `json:"thing_name,omitempty"`
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// Measurement is one coarse telemetry record. Immutable once received.
// TS is epoch milliseconds; the backend does not guarantee ordering.
//
//nolint:tagliatelle // external API
type Measurement struct {
	TS        float64   `json:"ts"`
	HeartRate float64   `json:"hr"`
	EDA       float64   `json:"eda"`
	SpO2      *float64  `json:"spo2,omitempty"`
	LeadOff   *bool     `json:"lead_off,omitempty"`
	ECGChunk  []float64 `json:"ecg,omitempty"`
}

// Sample is one point of a reconstructed high-frequency series, ordered by
// timestamp.
type Sample struct {
	TS    int64 // epoch milliseconds
	Value float64
}
