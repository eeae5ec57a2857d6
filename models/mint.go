package models

type MintStatus string

const (
	MintStatusPending   MintStatus = "pending"
	MintStatusSubmitted MintStatus = "submitted"
	MintStatusFailed    MintStatus = "failed"
)

// MintRecord is a pinned NFT metadata artifact waiting for (or already
// through) the external on-chain mint relayer. TxSignature stays nil until
// the relayer reports back.
type MintRecord struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string     `gorm:"type:uuid;not null;index" json:"user_id"`
	ClaimRecordID *string    `gorm:"type:uuid;index" json:"claim_record_id,omitempty"`
	Name          string     `gorm:"not null" json:"name"`
	Symbol        string     `gorm:"size:16;not null" json:"symbol"`
	MetadataURI   string     `gorm:"type:text;not null" json:"metadata_uri"`
	ImageURI      string     `gorm:"type:text" json:"image_uri"`
	TxSignature   *string    `gorm:"type:varchar(128)" json:"tx_signature,omitempty"`
	Status        MintStatus `gorm:"not null;default:'pending'" json:"status"`

	Timestamps
}
