package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/persiashop/storefront-backend/pkg/logger"
)

const defaultUsedCodeRetention = 24 * time.Hour

type VerificationCodeJobParams struct {
	Logger *logger.Logger
	Codes  codePurger
	// UsedRetention keeps consumed codes for this long after creation.
	UsedRetention time.Duration
}

type codePurger interface {
	PurgeCodes(ctx context.Context, expiredBefore, usedBefore time.Time) (int64, error)
}

// NewVerificationCodeJob deletes expired login codes and consumed codes past
// their retention.
func NewVerificationCodeJob(params VerificationCodeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Codes == nil {
		return nil, fmt.Errorf("verification code repository required")
	}
	retention := params.UsedRetention
	if retention <= 0 {
		retention = defaultUsedCodeRetention
	}
	return &verificationCodeJob{
		logg:      params.Logger,
		codes:     params.Codes,
		retention: retention,
		now:       time.Now,
	}, nil
}

type verificationCodeJob struct {
	logg      *logger.Logger
	codes     codePurger
	retention time.Duration
	now       func() time.Time
}

func (j *verificationCodeJob) Name() string { return "verification-code-purge" }

func (j *verificationCodeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	deleted, err := j.codes.PurgeCodes(ctx, now, now.Add(-j.retention))
	if err != nil {
		return fmt.Errorf("purge verification codes: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "rows_deleted", deleted)
	j.logg.Info(logCtx, "verification code purge complete")
	return nil
}
