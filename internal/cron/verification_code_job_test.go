package cron

import (
	"context"
	"testing"
	"time"

	"github.com/persiashop/storefront-backend/internal/users"
	"github.com/persiashop/storefront-backend/pkg/db/dbtest"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

func TestVerificationCodeJobPurgesExpiredAndOldUsedCodes(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []models.VerificationCode{
		{PhoneNumber: "09120000001", CodeHash: "expired", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-3 * time.Minute)},
		{PhoneNumber: "09120000002", CodeHash: "active", ExpiresAt: now.Add(time.Minute), CreatedAt: now.Add(-time.Minute)},
		{PhoneNumber: "09120000003", CodeHash: "used-old", IsUsed: true, ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-48 * time.Hour)},
		{PhoneNumber: "09120000004", CodeHash: "used-recent", IsUsed: true, ExpiresAt: now.Add(time.Minute), CreatedAt: now.Add(-time.Hour)},
	}
	if err := conn.Create(&seed).Error; err != nil {
		t.Fatalf("seed codes: %v", err)
	}

	jobIface, err := NewVerificationCodeJob(VerificationCodeJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Codes:  users.NewRepository(conn),
	})
	if err != nil {
		t.Fatalf("NewVerificationCodeJob: %v", err)
	}
	job := jobIface.(*verificationCodeJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var remaining []models.VerificationCode
	if err := conn.Order("id").Find(&remaining).Error; err != nil {
		t.Fatalf("load codes: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 codes left, got %d", len(remaining))
	}
	if remaining[0].CodeHash != "active" || remaining[1].CodeHash != "used-recent" {
		t.Fatalf("unexpected survivors: %s, %s", remaining[0].CodeHash, remaining[1].CodeHash)
	}
}

func TestNewVerificationCodeJobRequiresRepository(t *testing.T) {
	if _, err := NewVerificationCodeJob(VerificationCodeJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error without repository")
	}
}
