// suggest.go подсказывает ближайшую команду при опечатке.
package bot

// knownCommands — всё, что понимает routeCommand.
var knownCommands = []string{
	"vouch", "vouches", "whovouched", "reason",
	"setvouch", "resetvouch", "unvouchable",
	"optin", "optout",
	"verify", "reconcile", "synctags",
	"reviewer", "backup",
	"login", "logout", "help", "start",
}

// SuggestCommand возвращает ближайшую известную команду или пустую
// строку, если ничего похожего нет. Порог — две правки: "vouche" и
// "wouch" подсказываем, произвольный мусор молча игнорируем.
func SuggestCommand(cmd string) string {
	if cmd == "" {
		return ""
	}

	best := ""
	bestDist := 3
	for _, known := range knownCommands {
		if d := editDistance(cmd, known); d < bestDist {
			best = known
			bestDist = d
		}
	}
	return best
}

// editDistance — расстояние Левенштейна на рунах.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
