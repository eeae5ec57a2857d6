package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"strun-backend/models"
	"strun-backend/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
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
		&models.Wallet{},
		&models.MintRecord{},
	))
	return db
}

// pinnerFunc lets tests stub the pinning collaborator.
type pinnerFunc func(ctx context.Context, name string, payload interface{}) (string, error)

func (f pinnerFunc) PinJSON(ctx context.Context, name string, payload interface{}) (string, error) {
	return f(ctx, name, payload)
}

func okPinner() ProofPinner {
	return pinnerFunc(func(ctx context.Context, name string, payload interface{}) (string, error) {
		return "ipfs://QmTestProof", nil
	})
}

func failingPinner() ProofPinner {
	return pinnerFunc(func(ctx context.Context, name string, payload interface{}) (string, error) {
		return "", fmt.Errorf("pin service unreachable")
	})
}

// seedTask creates a partner location and an active task at (40.0, -73.0)
// with radius 50m and secret "s3cret".
func seedTask(t *testing.T, db *gorm.DB, rewardXP int64) models.Task {
	t.Helper()

	loc := models.PartnerLocation{
		ID:       uuid.NewString(),
		Name:     "Prospect Park Gate",
		Lat:      40.0,
		Lon:      -73.0,
		RadiusM:  50,
		QRSecret: "s3cret",
	}
	require.NoError(t, db.Create(&loc).Error)

	task := models.Task{
		ID:                uuid.NewString(),
		Title:             "Morning Territory Run",
		Slug:              "morning-territory-run-" + loc.ID[:8],
		RewardXP:          rewardXP,
		Status:            models.TaskStatusActive,
		PartnerLocationID: &loc.ID,
	}
	require.NoError(t, db.Create(&task).Error)
	return task
}

func newClaimService(db *gorm.DB, pinner ProofPinner) *ClaimService {
	progression := NewProgressionService(db)
	return NewClaimService(db, pinner, progression)
}

func TestClaimSucceedsAndAwardsXP(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())
	task := seedTask(t, db, 250)

	token := EncodeClaimToken("s3cret", task.ID, time.Now().Add(-10*time.Second))

	result, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{
		Token: token,
		Lat:   40.0001, // ~11m from center
		Lon:   -73.0,
		DeviceMeta: map[string]interface{}{
			"platform": "ios",
		},
	})
	require.Nil(t, claimErr)
	require.EqualValues(t, 250, result.XPAwarded)
	require.Equal(t, "ipfs://QmTestProof", result.ProofIPFS)
	require.InDelta(t, 11, result.DistanceM, 2)

	var record models.ClaimRecord
	require.NoError(t, db.First(&record, "user_id = ? AND task_id = ?", "user-1", task.ID).Error)
	require.Equal(t, "ipfs://QmTestProof", record.ProofURI)
	require.EqualValues(t, 250, record.XPAwarded)
	require.Contains(t, record.DeviceMeta, "ios")

	var prog models.UserProgress
	require.NoError(t, db.First(&prog, "external_user_id = ?", "user-1").Error)
	require.EqualValues(t, 250, prog.TotalXP)
	require.EqualValues(t, 1, prog.TotalClaims)
	require.Greater(t, prog.Level, 1)
}

func TestClaimTwiceWithin24hIsRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())
	task := seedTask(t, db, 100)

	claim := func() (*ClaimResult, *ClaimError) {
		token := EncodeClaimToken("s3cret", task.ID, time.Now())
		return svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	}

	_, claimErr := claim()
	require.Nil(t, claimErr)

	_, claimErr = claim()
	require.NotNil(t, claimErr)
	require.Equal(t, "already_claimed", claimErr.Code)
	require.Equal(t, 400, claimErr.Status)

	// A different user is unaffected
	token := EncodeClaimToken("s3cret", task.ID, time.Now())
	_, claimErr = svc.Claim(context.Background(), "user-2", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.Nil(t, claimErr)
}

func TestClaimStaleTokenRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())
	task := seedTask(t, db, 100)

	for name, issuedAt := range map[string]time.Time{
		"past":   time.Now().Add(-200 * time.Second),
		"future": time.Now().Add(200 * time.Second),
	} {
		t.Run(name, func(t *testing.T) {
			token := EncodeClaimToken("s3cret", task.ID, issuedAt)
			_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
			require.NotNil(t, claimErr)
			require.Equal(t, "token_expired", claimErr.Code)
		})
	}
}

func TestClaimWrongSecretRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())
	task := seedTask(t, db, 100)

	token := EncodeClaimToken("not-the-secret", task.ID, time.Now())
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.NotNil(t, claimErr)
	require.Equal(t, "invalid_signature", claimErr.Code)
}

func TestClaimMalformedTokenRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())

	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: "%%%garbage%%%", Lat: 40.0, Lon: -73.0})
	require.NotNil(t, claimErr)
	require.Equal(t, "invalid_token", claimErr.Code)
}

func TestClaimUnknownTaskRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())

	token := EncodeClaimToken("s3cret", uuid.NewString(), time.Now())
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.NotNil(t, claimErr)
	require.Equal(t, "task_not_found", claimErr.Code)
	require.Equal(t, 404, claimErr.Status)
}

func TestClaimTaskWithoutLocationRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())

	task := models.Task{
		ID:       uuid.NewString(),
		Title:    "Locationless",
		Slug:     "locationless",
		RewardXP: 100,
		Status:   models.TaskStatusActive,
	}
	require.NoError(t, db.Create(&task).Error)

	token := EncodeClaimToken("s3cret", task.ID, time.Now())
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.NotNil(t, claimErr)
	require.Equal(t, "task_not_claimable", claimErr.Code)
}

func TestClaimGeofenceBoundary(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())

	// ~55.6m north of the configured center
	lat, lon := 40.0005, -73.0
	dist := utils.DistanceMeters(lat, lon, 40.0, -73.0)

	makeTask := func(radius float64) models.Task {
		loc := models.PartnerLocation{
			ID:       uuid.NewString(),
			Name:     "Boundary",
			Lat:      40.0,
			Lon:      -73.0,
			RadiusM:  radius,
			QRSecret: "s3cret",
		}
		require.NoError(t, db.Create(&loc).Error)
		task := models.Task{
			ID:                uuid.NewString(),
			Title:             "Boundary Run",
			Slug:              "boundary-run-" + loc.ID[:8],
			RewardXP:          10,
			Status:            models.TaskStatusActive,
			PartnerLocationID: &loc.ID,
		}
		require.NoError(t, db.Create(&task).Error)
		return task
	}

	// radius + 30 just covers the distance → accepted
	inside := makeTask(dist - 29.9)
	token := EncodeClaimToken("s3cret", inside.ID, time.Now())
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: lat, Lon: lon})
	require.Nil(t, claimErr)

	// radius + 30 one metre short → rejected with distance details
	outside := makeTask(dist - 31)
	token = EncodeClaimToken("s3cret", outside.ID, time.Now())
	_, claimErr = svc.Claim(context.Background(), "user-2", ClaimRequest{Token: token, Lat: lat, Lon: lon})
	require.NotNil(t, claimErr)
	require.Equal(t, "out_of_range", claimErr.Code)
	require.EqualValues(t, int64(dist+0.5), claimErr.Details["distance"])
	require.NotZero(t, claimErr.Details["required"])
}

func TestClaimPinFailureGrantsNothing(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, failingPinner())
	task := seedTask(t, db, 100)

	token := EncodeClaimToken("s3cret", task.ID, time.Now())
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.NotNil(t, claimErr)
	require.Equal(t, "proof_persistence_failed", claimErr.Code)
	require.Equal(t, 500, claimErr.Status)

	var count int64
	db.Model(&models.ClaimRecord{}).Count(&count)
	require.Zero(t, count)

	var prog models.UserProgress
	err := db.First(&prog, "external_user_id = ?", "user-1").Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestClaimMarksParticipationClaimed(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())
	task := seedTask(t, db, 100)

	participation := models.TaskParticipation{
		UserID: "user-1",
		TaskID: task.ID,
		Status: models.ParticipationJoined,
	}
	require.NoError(t, db.Create(&participation).Error)

	token := EncodeClaimToken("s3cret", task.ID, time.Now())
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.Nil(t, claimErr)

	var updated models.TaskParticipation
	require.NoError(t, db.First(&updated, "id = ?", participation.ID).Error)
	require.Equal(t, models.ParticipationClaimed, updated.Status)
}

func TestClaimDuplicateKeyMapsToAlreadyClaimed(t *testing.T) {
	db := newTestDB(t)
	svc := newClaimService(db, okPinner())
	task := seedTask(t, db, 100)

	// Simulate losing the insert race: a record in the current window that
	// the rolling pre-check misses because claimed_at is far in the past.
	now := time.Now()
	stale := models.ClaimRecord{
		UserID:      "user-1",
		TaskID:      task.ID,
		WindowStart: now.UTC().Truncate(models.ClaimWindow),
		ClaimedAt:   now.Add(-48 * time.Hour),
		ProofURI:    "ipfs://QmOld",
		XPAwarded:   100,
	}
	require.NoError(t, db.Create(&stale).Error)

	token := EncodeClaimToken("s3cret", task.ID, now)
	_, claimErr := svc.Claim(context.Background(), "user-1", ClaimRequest{Token: token, Lat: 40.0, Lon: -73.0})
	require.NotNil(t, claimErr)
	require.Equal(t, "already_claimed", claimErr.Code)
}
