// Package tags собирает и разбирает тег в отображаемом имени участника:
// "Alice [3V]" — 3 поручительства, "Bob [unvouchable]" — чёрный список.
// tags.go — чистые строковые функции без побочных эффектов:
// зачистка скобочных сегментов, композиция имени, разбор заявленного счётчика.
package tags

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnvouchableTag — метка участника из чёрного списка.
const UnvouchableTag = "unvouchable"

// Скобки: ASCII и полноширинные варианты. Переименование в Telegram
// местами не пропускает буквальные ASCII-скобки, поэтому наружу
// всегда уходят полноширинные.
const (
	openASCII  = '['
	closeASCII = ']'
	openWide   = '［'
	closeWide  = '］'
)

var countTagRe = regexp.MustCompile(`^(\d+)V$`)

// StripTags вырезает из имени ВСЕ скобочные сегменты (ASCII и полноширинные)
// и возвращает чистую основу. ok == false — основа непригодна: после зачистки
// осталась пустая строка или непарная скобка; вызывающий откатывается
// на неизменяемый хендл участника.
func StripTags(name string) (string, bool) {
	var b strings.Builder
	depth := 0
	stray := false

	for _, r := range name {
		switch r {
		case openASCII, openWide:
			depth++
		case closeASCII, closeWide:
			if depth == 0 {
				stray = true
				continue
			}
			depth--
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}

	base := strings.TrimSpace(b.String())
	if base == "" || stray || depth != 0 {
		return "", false
	}
	return base, true
}

// Build возвращает список тегов для счётчика и флага unvouchable.
// Нулевой счётчик тега не получает.
func Build(count int, unvouchable bool) []string {
	var tags []string
	if count > 0 {
		tags = append(tags, fmt.Sprintf("%dV", count))
	}
	if unvouchable {
		tags = append(tags, UnvouchableTag)
	}
	return tags
}

// Compose собирает каноничное отображаемое имя: основа + " [теги]".
// Теги соединяются через ", ", скобки в итоговой строке заменяются на
// полноширинные, длина режется до maxLen рун. Без тегов возвращается
// только основа. Композиция детерминирована: одинаковый вход даёт
// одинаковый выход, повторный вызов ничего не меняет.
func Compose(base string, count int, unvouchable bool, maxLen int) string {
	tags := Build(count, unvouchable)

	name := base
	if len(tags) > 0 {
		name = base + " [" + strings.Join(tags, ", ") + "]"
	}

	// Самолечение: если в хвосте оказалось больше одной открывающей скобки
	// (испорченное прежнее состояние), оставляем только последний тег.
	// Основа могла прийти с полноширинными скобками (откат на хендл),
	// поэтому сначала приводим всё к ASCII.
	name = strings.NewReplacer(
		string(openWide), string(openASCII),
		string(closeWide), string(closeASCII),
	).Replace(name)
	name = collapseExtraTags(name)

	name = strings.NewReplacer(
		string(openASCII), string(openWide),
		string(closeASCII), string(closeWide),
	).Replace(name)

	return truncate(name, maxLen)
}

// ParseCount достаёт заявленный счётчик из тега имени: "Alice [3V]" → 3.
// Нет тега со счётчиком — 0. Понимает оба варианта скобок.
func ParseCount(display string) int {
	normalized := strings.NewReplacer(
		string(openWide), string(openASCII),
		string(closeWide), string(closeASCII),
	).Replace(display)

	open := strings.LastIndexByte(normalized, byte(openASCII))
	if open < 0 {
		return 0
	}
	close := strings.IndexByte(normalized[open:], byte(closeASCII))
	if close < 0 {
		return 0
	}

	segment := normalized[open+1 : open+close]
	for _, tag := range strings.Split(segment, ",") {
		m := countTagRe.FindStringSubmatch(strings.TrimSpace(tag))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

// collapseExtraTags сводит несколько скобочных сегментов к последнему.
func collapseExtraTags(name string) string {
	first := strings.IndexByte(name, byte(openASCII))
	if first < 0 {
		return name
	}
	if strings.Count(name[first:], string(openASCII)) <= 1 {
		return name
	}
	last := strings.LastIndexByte(name, byte(openASCII))
	return strings.TrimSpace(name[:first]) + " " + name[last:]
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
