// services/wallet_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"strun-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustodyClient talks to the external custody service that actually holds
// the Solana keys. This service only ever sees addresses and balances.
type CustodyClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewCustodyClient() *CustodyClient {
	baseURL := os.Getenv("CUSTODY_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("❌ CUSTODY_SERVICE_URL environment variable not set")
	}
	token := os.Getenv("CUSTODY_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("❌ CUSTODY_SERVICE_TOKEN environment variable not set")
	}

	return &CustodyClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type custodyWalletResponse struct {
	Address     string  `json:"address"`
	Chain       string  `json:"chain"`
	SolBalance  float64 `json:"sol_balance"`
	UsdcBalance float64 `json:"usdc_balance"`
}

// CreateWallet asks the custody service to derive a wallet for the user.
func (c *CustodyClient) CreateWallet(ctx context.Context, userID string) (*custodyWalletResponse, error) {
	url := fmt.Sprintf("%s/v1/wallets", c.BaseURL)

	reqBody := map[string]interface{}{
		"user_id": userID,
		"chain":   "solana",
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call custody service: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("Custody service /v1/wallets returned %d: %s", resp.StatusCode, string(body))
		return nil, fmt.Errorf("custody service returned status %d", resp.StatusCode)
	}

	var out custodyWalletResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode custody response: %w", err)
	}
	if out.Address == "" {
		return nil, fmt.Errorf("custody response missing address")
	}

	return &out, nil
}

type WalletService struct {
	DB      *gorm.DB
	Custody *CustodyClient
}

func NewWalletService(db *gorm.DB, custody *CustodyClient) *WalletService {
	return &WalletService{DB: db, Custody: custody}
}

// CreateUserWallet provisions a custodial wallet for the authenticated
// user. Idempotent: if the user already has an active wallet, return it.
func (s *WalletService) CreateUserWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var existing models.Wallet
	err := s.DB.Where("user_id = ? AND is_active = ?", userID, true).First(&existing).Error
	if err == nil {
		return c.JSON(fiber.Map{"message": "Wallet already exists", "wallet": existing})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	created, err := s.Custody.CreateWallet(c.Context(), userID)
	if err != nil {
		log.Printf("❌ custody wallet creation failed for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create wallet"})
	}

	wallet := models.Wallet{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Chain:              created.Chain,
		Address:            created.Address,
		IsCustodial:        true,
		IsActive:           true,
		SolBalance:         created.SolBalance,
		UsdcBalance:        created.UsdcBalance,
		LastBalanceCheckAt: time.Now().UTC(),
	}
	if wallet.Chain == "" {
		wallet.Chain = "solana"
	}

	if err := s.DB.Create(&wallet).Error; err != nil {
		// Custody is idempotent per user, so a lost race just means another
		// request stored the same address first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if err := s.DB.Where("address = ?", created.Address).First(&wallet).Error; err == nil {
				return c.JSON(fiber.Map{"message": "Wallet already exists", "wallet": wallet})
			}
		}
		log.Printf("DB Error storing wallet for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store wallet"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Wallet created", "wallet": wallet})
}

// GetUserWallet returns the authenticated user's active wallet.
func (s *WalletService) GetUserWallet(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var wallet models.Wallet
	if err := s.DB.Where("user_id = ? AND is_active = ?", userID, true).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No wallet for user"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	return c.JSON(wallet)
}
