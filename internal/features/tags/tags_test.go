package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"без тегов", "Alice", "Alice", true},
		{"один тег", "Alice [3V]", "Alice", true},
		{"два тега", "Alice [3V] [unvouchable]", "Alice", true},
		{"полноширинные скобки", "Alice ［3V］", "Alice", true},
		{"тег в начале", "［2V］Bob", "Bob", true},
		{"вложенные скобки", "A [b [c]]", "A", true},
		{"только тег", "[3V]", "", false},
		{"пустая строка", "", "", false},
		{"непарная закрывающая", "Alice ]", "", false},
		{"непарная открывающая", "Alice [", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StripTags(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild(t *testing.T) {
	assert.Empty(t, Build(0, false))
	assert.Equal(t, []string{"3V"}, Build(3, false))
	assert.Equal(t, []string{UnvouchableTag}, Build(0, true))
	assert.Equal(t, []string{"7V", UnvouchableTag}, Build(7, true))
}

func TestCompose(t *testing.T) {
	t.Run("без тегов имя не трогается", func(t *testing.T) {
		assert.Equal(t, "Alice", Compose("Alice", 0, false, 32))
	})

	t.Run("скобки наружу уходят полноширинными", func(t *testing.T) {
		assert.Equal(t, "Alice ［3V］", Compose("Alice", 3, false, 32))
	})

	t.Run("оба тега через запятую", func(t *testing.T) {
		assert.Equal(t, "Bob ［2V, unvouchable］", Compose("Bob", 2, true, 64))
	})

	t.Run("длина режется по рунам", func(t *testing.T) {
		got := Compose("Оченьдлинноеимя", 12, false, 16)
		assert.LessOrEqual(t, len([]rune(got)), 16)
	})

	t.Run("детерминированность", func(t *testing.T) {
		a := Compose("Alice", 3, true, 32)
		b := Compose("Alice", 3, true, 32)
		assert.Equal(t, a, b)
	})

	t.Run("лишний ASCII-тег в основе схлопывается", func(t *testing.T) {
		assert.Equal(t, "Ева ［2V］", Compose("Ева [9V]", 2, false, 32))
	})

	t.Run("лишний полноширинный тег в основе схлопывается", func(t *testing.T) {
		// Основа пришла из отката на хендл и несёт старый тег
		assert.Equal(t, "Ева ［2V］", Compose("Ева ［9V］", 2, false, 32))
	})
}

// Полный круг: собранное имя зачищается обратно до той же основы,
// повторная композиция даёт байт-в-байт то же имя.
func TestComposeStripRoundTrip(t *testing.T) {
	first := Compose("Alice", 3, false, 32)

	base, ok := StripTags(first)
	require.True(t, ok)
	assert.Equal(t, "Alice", base)

	second := Compose(base, 3, false, 32)
	assert.Equal(t, first, second)
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"ASCII скобки", "Alice [3V]", 3},
		{"полноширинные скобки", "Alice ［12V］", 12},
		{"оба тега", "Alice [3V, unvouchable]", 3},
		{"только unvouchable", "Alice [unvouchable]", 0},
		{"без тега", "Alice", 0},
		{"мусор в скобках", "Alice [hello]", 0},
		{"считается последний сегмент", "A [x] [5V]", 5},
		{"V без числа", "Alice [V]", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCount(tt.in))
		})
	}
}

func TestCollapseExtraTags(t *testing.T) {
	assert.Equal(t, "Alice [2V]", collapseExtraTags("Alice [1V] [2V]"))
	assert.Equal(t, "Alice [1V]", collapseExtraTags("Alice [1V]"))
	assert.Equal(t, "Alice", collapseExtraTags("Alice"))
}
