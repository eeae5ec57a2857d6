package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"strun-backend/models"
	"strun-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubPinner struct{}

func (stubPinner) PinJSON(ctx context.Context, name string, payload interface{}) (string, error) {
	return "ipfs://QmHandlerTest", nil
}

func newClaimTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Task{},
		&models.PartnerLocation{},
		&models.TaskParticipation{},
		&models.ClaimRecord{},
		&models.UserProgress{},
	))

	claimService := services.NewClaimService(db, stubPinner{}, services.NewProgressionService(db))

	app := fiber.New()
	SetupClaimRoutes(app, claimService)
	return app, db
}

func seedClaimableTask(t *testing.T, db *gorm.DB) models.Task {
	t.Helper()

	loc := models.PartnerLocation{
		ID:       uuid.NewString(),
		Name:     "Riverside Checkpoint",
		Lat:      40.0,
		Lon:      -73.0,
		RadiusM:  50,
		QRSecret: "s3cret",
	}
	require.NoError(t, db.Create(&loc).Error)

	task := models.Task{
		ID:                uuid.NewString(),
		Title:             "Riverside Sprint",
		Slug:              "riverside-sprint",
		RewardXP:          150,
		Status:            models.TaskStatusActive,
		PartnerLocationID: &loc.ID,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func postClaim(t *testing.T, app *fiber.App, userID string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/s/tasks/claim", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestClaimEndpointSuccess(t *testing.T) {
	app, db := newClaimTestApp(t)
	task := seedClaimableTask(t, db)

	token := services.EncodeClaimToken("s3cret", task.ID, time.Now())
	resp := postClaim(t, app, "user-1", fiber.Map{
		"token": token,
		"lat":   40.0,
		"lon":   -73.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	require.Equal(t, "success", body["status"])
	require.EqualValues(t, 150, body["xp_awarded"])
	require.Equal(t, "ipfs://QmHandlerTest", body["proof_ipfs"])
	require.NotEmpty(t, body["claim_id"])
}

func TestClaimEndpointMalformedToken(t *testing.T) {
	app, _ := newClaimTestApp(t)

	resp := postClaim(t, app, "user-1", fiber.Map{
		"token": "not-a-token",
		"lat":   40.0,
		"lon":   -73.0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	require.Equal(t, "invalid_token", body["error"])
}

func TestClaimEndpointOutOfRangeDetails(t *testing.T) {
	app, db := newClaimTestApp(t)
	task := seedClaimableTask(t, db)

	token := services.EncodeClaimToken("s3cret", task.ID, time.Now())
	resp := postClaim(t, app, "user-1", fiber.Map{
		"token": token,
		"lat":   41.0, // ~111km away
		"lon":   -73.0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	require.Equal(t, "out_of_range", body["error"])
	require.Greater(t, body["distance"].(float64), body["required"].(float64))
}

func TestClaimEndpointMissingToken(t *testing.T) {
	app, _ := newClaimTestApp(t)

	resp := postClaim(t, app, "user-1", fiber.Map{"lat": 40.0, "lon": -73.0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	require.Equal(t, "Validation failed", body["error"])
}

func TestClaimEndpointRequiresUserContext(t *testing.T) {
	app, _ := newClaimTestApp(t)

	resp := postClaim(t, app, "", fiber.Map{
		"token": "anything",
		"lat":   40.0,
		"lon":   -73.0,
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRecentClaimsEndpoint(t *testing.T) {
	app, db := newClaimTestApp(t)
	task := seedClaimableTask(t, db)

	token := services.EncodeClaimToken("s3cret", task.ID, time.Now())
	resp := postClaim(t, app, "user-1", fiber.Map{"token": token, "lat": 40.0, "lon": -73.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/s/claims", nil)
	req.Header.Set("X-User-ID", "user-1")
	listResp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var claims []models.ClaimRecord
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&claims))
	require.Len(t, claims, 1)
	require.Equal(t, task.ID, claims[0].TaskID)
}
