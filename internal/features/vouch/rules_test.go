package vouch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/vouch-bot/internal/common"
)

func TestValidate(t *testing.T) {
	base := Snapshot{
		ActorID:        1,
		TargetID:       2,
		TargetTracking: true,
	}

	t.Run("чистый случай проходит", func(t *testing.T) {
		assert.NoError(t, Validate(base, false))
	})

	t.Run("самопоручительство", func(t *testing.T) {
		s := base
		s.TargetID = s.ActorID
		assert.ErrorIs(t, Validate(s, false), common.ErrSelfVouch)
	})

	t.Run("повторное поручительство", func(t *testing.T) {
		s := base
		s.AlreadyVouched = true
		assert.ErrorIs(t, Validate(s, false), common.ErrAlreadyVouched)
	})

	t.Run("цель в списке unvouchable", func(t *testing.T) {
		s := base
		s.TargetUnvouchable = true
		assert.ErrorIs(t, Validate(s, false), common.ErrUnvouchable)
	})

	t.Run("цель отключила учёт", func(t *testing.T) {
		s := base
		s.TargetTracking = false
		assert.ErrorIs(t, Validate(s, false), common.ErrTrackingDisabled)
	})

	t.Run("порядок проверок стабилен", func(t *testing.T) {
		// Всё нарушено сразу — побеждает самопоручительство
		s := Snapshot{
			ActorID:           7,
			TargetID:          7,
			AlreadyVouched:    true,
			TargetUnvouchable: true,
			TargetTracking:    false,
		}
		assert.ErrorIs(t, Validate(s, false), common.ErrSelfVouch)

		// Без самопоручительства следующим идёт повтор
		s.TargetID = 8
		assert.ErrorIs(t, Validate(s, false), common.ErrAlreadyVouched)

		s.AlreadyVouched = false
		assert.ErrorIs(t, Validate(s, false), common.ErrUnvouchable)
	})

	t.Run("привилегированный обходит всё", func(t *testing.T) {
		s := Snapshot{
			ActorID:           7,
			TargetID:          7,
			AlreadyVouched:    true,
			TargetUnvouchable: true,
			TargetTracking:    false,
		}
		assert.NoError(t, Validate(s, true))
	})
}

func TestWithinCooldown(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	t.Run("ещё не поручался", func(t *testing.T) {
		assert.False(t, WithinCooldown(nil, now, window))
	})

	t.Run("внутри окна", func(t *testing.T) {
		assert.True(t, WithinCooldown(at(time.Second), now, window))
		assert.True(t, WithinCooldown(at(23*time.Hour+59*time.Minute), now, window))
	})

	t.Run("граница окна не включается", func(t *testing.T) {
		assert.False(t, WithinCooldown(at(window), now, window))
	})

	t.Run("за пределами окна", func(t *testing.T) {
		assert.False(t, WithinCooldown(at(25*time.Hour), now, window))
	})
}

func TestAdminAdjustment(t *testing.T) {
	assert.Equal(t, 0, AdminAdjustment(3, 3))
	assert.Equal(t, 2, AdminAdjustment(5, 3))
	// Избыток записей поправкой не считается
	assert.Equal(t, 0, AdminAdjustment(1, 4))
	assert.Equal(t, 0, AdminAdjustment(0, 0))
}
