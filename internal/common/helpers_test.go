package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPluralizeVouches(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "поручительство"},
		{21, "поручительство"},
		{101, "поручительство"},
		{2, "поручительства"},
		{4, "поручительства"},
		{23, "поручительства"},
		{0, "поручительств"},
		{5, "поручительств"},
		{11, "поручительств"},
		{12, "поручительств"},
		{14, "поручительств"},
		{111, "поручительств"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PluralizeVouches(tt.n), "n=%d", tt.n)
	}
}

func TestFormatVouchCount(t *testing.T) {
	assert.Equal(t, "1 поручительство", FormatVouchCount(1))
	assert.Equal(t, "3 поручительства", FormatVouchCount(3))
	assert.Equal(t, "7 поручительств", FormatVouchCount(7))
}

func TestMoscowTime(t *testing.T) {
	// Москва с 2014 года живёт на фиксированном UTC+3 без переводов
	_, offset := GetMoscowTime().Zone()
	assert.Equal(t, 3*60*60, offset)
}

func TestFormatDateTime(t *testing.T) {
	// Полночь UTC — это 03:00 по Москве
	ts := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "30.08.2026 03:00", FormatDateTime(ts))
}

func TestPluralizeRecords(t *testing.T) {
	assert.Equal(t, "запись", PluralizeRecords(1))
	assert.Equal(t, "записи", PluralizeRecords(2))
	assert.Equal(t, "записей", PluralizeRecords(11))
	assert.Equal(t, "записей", PluralizeRecords(0))
}
