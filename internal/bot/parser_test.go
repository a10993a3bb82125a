package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		name      string
		in        string
		cmd       string
		args      []string
		isCommand bool
	}{
		{"восклицательный префикс", "!vouch @alice", "vouch", []string{"@alice"}, true},
		{"слэш", "/login secret", "login", []string{"secret"}, true},
		{"точка", ".vouches", "vouches", nil, true},
		{"регистр команды", "!VOUCH @bob", "vouch", []string{"@bob"}, true},
		{"упоминание бота", "/vouch@my_bot @bob", "vouch", []string{"@bob"}, true},
		{"аргументы с причиной", "!vouch @bob надёжный человек", "vouch", []string{"@bob", "надёжный", "человек"}, true},
		{"пробелы вокруг", "  !vouch @bob  ", "vouch", []string{"@bob"}, true},
		{"обычный текст", "привет всем", "", nil, false},
		{"голый префикс", "!", "", nil, false},
		{"пустая строка", "", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, isCommand := p.ParseCommand(tt.in)
			assert.Equal(t, tt.isCommand, isCommand)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}
