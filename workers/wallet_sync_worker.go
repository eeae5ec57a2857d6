package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"strun-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceSyncClient pulls balance changes from the custody service and
// mirrors them into the wallets table so the app never queries the chain
// on the request path.
type BalanceSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewBalanceSyncClient(db *gorm.DB) *BalanceSyncClient {
	baseURL := os.Getenv("CUSTODY_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("CUSTODY_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("CUSTODY_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("CUSTODY_SERVICE_TOKEN environment variable is required for balance sync")
	}

	return &BalanceSyncClient{
		BaseURL: baseURL,
		Token:   token,
		DB:      db,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *BalanceSyncClient) GetChangedWallets(ctx context.Context, since time.Time) ([]models.Wallet, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/v1/wallets/balances", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call custody service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("custody service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Wallets []models.Wallet `json:"wallets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode custody response: %w", err)
	}

	return response.Wallets, nil
}

// PollBalances mirrors balance changes into the DB until ctx is cancelled.
func PollBalances(ctx context.Context, client *BalanceSyncClient, pollInterval time.Duration) {
	log.Println("Starting wallet balance polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Wallet balance polling stopped.")
			return
		case <-ticker.C:
			tickStart := time.Now().UTC()

			wallets, err := client.GetChangedWallets(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling wallet balances: %v", err)
				continue
			}

			count := len(wallets)
			if count == 0 {
				continue
			}

			// Bulk upsert keyed on the unique address column; a single
			// statement on Postgres.
			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "address"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"sol_balance",
						"usdc_balance",
						"is_active",
						"last_balance_check_at",
						"updated_at",
					}),
				},
			).Create(&wallets).Error; err != nil {
				log.Printf("❌ Failed to upsert %d wallet(s): %v", count, err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}

			// Advance to tick start, not time.Now(), so polling latency never
			// skips a change.
			lastSyncTime = tickStart
			log.Printf("✅ Synced balances for %d wallet(s).", count)
		}
	}
}
