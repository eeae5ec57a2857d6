package models

// PartnerLocation is a partner venue with a geofenced claim zone. QRSecret
// signs the claim tokens shown at the venue; it is provisioned externally
// and must only ever be read per-request (no in-process caching).
type PartnerLocation struct {
	ID      string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name    string  `gorm:"not null" json:"name"`
	Lat     float64 `gorm:"not null" json:"lat"`
	Lon     float64 `gorm:"not null" json:"lon"`
	RadiusM float64 `gorm:"not null" json:"radius_m"`
	QRSecret string `gorm:"not null" json:"-"`

	Timestamps
}
