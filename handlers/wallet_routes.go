// handlers/wallet_routes.go
package handlers

import (
	"strun-backend/middleware"
	"strun-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, walletService *services.WalletService, mintService *services.MintService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/wallets", walletService.CreateUserWallet)
	secured.Get("/wallets", walletService.GetUserWallet)

	secured.Post("/mints", mintService.MintClaimNFT)
	secured.Get("/mints", mintService.GetUserMints)

	// Relayer callback — role-gated like the rest of the admin surface
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))
	admin.Patch("/mints/:id/status", mintService.UpdateMintStatus)
}
