package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/vouch-bot/internal/features/members"
)

func TestClaimedCount(t *testing.T) {
	t.Run("тег в сохранённом имени", func(t *testing.T) {
		m := &members.Member{DisplayName: "Алиса ［3V］", FirstName: "Алиса"}
		assert.Equal(t, 3, claimedCount(m))
	})

	t.Run("без тега вообще", func(t *testing.T) {
		m := &members.Member{DisplayName: "Алиса", FirstName: "Алиса"}
		assert.Equal(t, 0, claimedCount(m))
	})

	t.Run("живое имя без сохранённого", func(t *testing.T) {
		m := &members.Member{FirstName: "Боб", LastName: "[7V]"}
		assert.Equal(t, 7, claimedCount(m))
	})

	t.Run("живое имя перебивает сохранённое", func(t *testing.T) {
		// После нашего переименования участник дописал себе тег побольше
		m := &members.Member{
			DisplayName: "Боб ［2V］",
			FirstName:   "Боб",
			LastName:    "[9V]",
		}
		assert.Equal(t, 9, claimedCount(m))
	})

	t.Run("сохранённое больше живого", func(t *testing.T) {
		m := &members.Member{
			DisplayName: "Боб ［5V］",
			FirstName:   "Боб",
			LastName:    "[2V]",
		}
		assert.Equal(t, 5, claimedCount(m))
	})
}

func TestClassifyTag(t *testing.T) {
	t.Run("заявленное равно хранимому", func(t *testing.T) {
		assert.Equal(t, StatusVerified, classifyTag(3, 3))
	})

	t.Run("имя не догнало счётчик", func(t *testing.T) {
		// Тег меньше хранимого чинит синк, разбор не открывается
		assert.Equal(t, StatusVerified, classifyTag(1, 4))
		assert.Equal(t, StatusVerified, classifyTag(0, 2))
	})

	t.Run("заявленное больше хранимого", func(t *testing.T) {
		assert.Equal(t, StatusFakeTags, classifyTag(5, 4))
		assert.Equal(t, StatusFakeTags, classifyTag(1, 0))
	})
}
