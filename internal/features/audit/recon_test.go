package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/vouch-bot/internal/features/vouch"
)

const (
	reviewerID = int64(100)
	targetID   = int64(200)
)

func oldFirstRecords(voucherIDs ...int64) []vouch.Vouch {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	records := make([]vouch.Vouch, 0, len(voucherIDs))
	for i, vid := range voucherIDs {
		records = append(records, vouch.Vouch{
			ID:        int64(i + 1),
			VoucherID: vid,
			VouchedID: targetID,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return records
}

func TestPlanReconConsistent(t *testing.T) {
	records := oldFirstRecords(1, 2, 3)
	plan := PlanRecon(reviewerID, targetID, 3, records, time.Now())

	assert.True(t, plan.Consistent())
	assert.Empty(t, plan.Create)
	assert.Empty(t, plan.RemoveIDs)
	assert.Zero(t, plan.Shortfall)
}

func TestPlanReconSurplus(t *testing.T) {
	// Счётчик 5, записей 0: синтезируем пять записей от ревьюера
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	plan := PlanRecon(reviewerID, targetID, 5, nil, now)

	assert.Equal(t, 5, plan.Diff)
	require.Len(t, plan.Create, 5)
	assert.Empty(t, plan.RemoveIDs)
	assert.Zero(t, plan.Shortfall)

	seen := make(map[time.Time]struct{})
	for _, rec := range plan.Create {
		assert.Equal(t, reviewerID, rec.VoucherID)
		assert.Equal(t, targetID, rec.VouchedID)
		assert.False(t, rec.CreatedAt.Before(now), "метки времени свежие")
		seen[rec.CreatedAt] = struct{}{}
	}
	assert.Len(t, seen, 5, "метки времени различимы")
}

func TestPlanReconSurplusReviewerAlreadyVouched(t *testing.T) {
	// У ревьюера уже есть запись за цель: синтез пропускается целиком,
	// недобор отражается в Shortfall
	records := oldFirstRecords(reviewerID, 2)
	plan := PlanRecon(reviewerID, targetID, 5, records, time.Now())

	assert.Equal(t, 3, plan.Diff)
	assert.Empty(t, plan.Create)
	assert.Equal(t, 3, plan.Shortfall)
}

func TestPlanReconDeficit(t *testing.T) {
	// Записей 4, счётчик 2: удаляем две самые старые
	records := oldFirstRecords(1, 2, 3, 4)
	plan := PlanRecon(reviewerID, targetID, 2, records, time.Now())

	assert.Equal(t, -2, plan.Diff)
	assert.Empty(t, plan.Create)
	assert.Equal(t, []int64{1, 2}, plan.RemoveIDs, "лишние записи — старые первыми")
}

func TestPlanReconDeficitToZero(t *testing.T) {
	records := oldFirstRecords(1, 2, 3)
	plan := PlanRecon(reviewerID, targetID, 0, records, time.Now())

	assert.Equal(t, []int64{1, 2, 3}, plan.RemoveIDs)
}

func TestPlanReconCounterUntouched(t *testing.T) {
	// План никогда не предлагает менять счётчик: поля для этого просто нет,
	// а дважды применённый план на сошедшемся участнике пуст
	records := oldFirstRecords(1, 2)
	plan := PlanRecon(reviewerID, targetID, 2, records, time.Now())
	assert.True(t, plan.Consistent())
}
