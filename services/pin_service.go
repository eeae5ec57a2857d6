// services/pin_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// ProofPinner persists a JSON artifact to content-addressed storage and
// returns its URI. The claim flow treats pin failure as fatal: no durable
// proof, no reward.
type ProofPinner interface {
	PinJSON(ctx context.Context, name string, payload interface{}) (string, error)
}

// PinataClient pins proof artifacts and NFT metadata through Pinata.
type PinataClient struct {
	BaseURL string
	JWT     string
	Client  *http.Client
}

func NewPinataClient() *PinataClient {
	jwt := os.Getenv("PINATA_JWT")
	if jwt == "" {
		log.Fatal("❌ PINATA_JWT is not set — proof pinning cannot work")
	}
	baseURL := os.Getenv("PINATA_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.pinata.cloud"
	}

	return &PinataClient{
		BaseURL: baseURL,
		JWT:     jwt,
		Client: &http.Client{
			// Pinning is on the claim critical path; fail fast rather than
			// hang the request. No retries here — the caller may resubmit.
			Timeout: 10 * time.Second,
		},
	}
}

// PinJSON calls Pinata's pinJSONToIPFS and returns an ipfs:// URI.
func (c *PinataClient) PinJSON(ctx context.Context, name string, payload interface{}) (string, error) {
	url := fmt.Sprintf("%s/pinning/pinJSONToIPFS", c.BaseURL)

	reqBody := map[string]interface{}{
		"pinataContent": payload,
		"pinataMetadata": map[string]interface{}{
			"name": name,
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal pin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.JWT)

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("pin service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		log.Printf("Pinata pinJSONToIPFS returned %d: %s", resp.StatusCode, string(body))
		return "", fmt.Errorf("pin service returned status %d", resp.StatusCode)
	}

	var out struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode pin response: %w", err)
	}
	if out.IpfsHash == "" {
		return "", fmt.Errorf("pin response missing IpfsHash")
	}

	return "ipfs://" + out.IpfsHash, nil
}
