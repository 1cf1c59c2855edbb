package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPlainTextPassesThrough(t *testing.T) {
	r := DefaultRenderer()

	assert.Equal(t, "[Admin] ", r.Render("[Admin] ", "en_us"))
	assert.Equal(t, "§cRed", r.Render("§cRed", "en_us"))
	assert.Equal(t, "", r.Render("   ", "en_us"))
}

func TestRenderInvalidJSONPassesThrough(t *testing.T) {
	r := DefaultRenderer()
	assert.Equal(t, "{broken", r.Render("{broken", "en_us"))
}

func TestRenderComponent(t *testing.T) {
	r := DefaultRenderer()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"text", `{"text":"Blue"}`, "Blue"},
		{"color", `{"text":"Red","color":"red"}`, "§cRed"},
		{"bold", `{"text":"B","bold":true}`, "§lB"},
		{"string literal", `"quoted"`, "quoted"},
		{"extra inherits", `{"text":"A","color":"gold","extra":[{"text":"B"}]}`, "§6AB"},
		{"array head is parent", `["",{"text":"A","color":"red"},{"text":"B"}]`, "§cA§rB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Render(tt.raw, "en_us"))
		})
	}
}

func TestRenderTranslateWithArgs(t *testing.T) {
	r := DefaultRenderer()
	got := r.Render(`{"translate":"chat.square_brackets","with":["Admin"]}`, "en_us")
	assert.Equal(t, "[Admin]", got)
}

func TestRenderTranslateLocale(t *testing.T) {
	r := DefaultRenderer()
	raw := `{"translate":"options.on"}`

	assert.Equal(t, "ON", r.Render(raw, "en_us"))
	assert.Equal(t, "AN", r.Render(raw, "de_de"))
	assert.Equal(t, "ON", r.Render(raw, "not a locale"))
}

func TestRenderTranslateFallsBackToFirstCatalog(t *testing.T) {
	r := DefaultRenderer()

	// Missing in de_de, present in en_us.
	got := r.Render(`{"translate":"chat.type.team.text","with":["a","b","c"]}`, "de_de")
	assert.Equal(t, "a <b> c", got)

	assert.Equal(t, "unknown.key", r.Render(`{"translate":"unknown.key"}`, "en_us"))
}

func TestNewMessageRendererRequiresLocale(t *testing.T) {
	_, err := NewMessageRenderer(nil, nil)
	require.Error(t, err)

	_, err = NewMessageRenderer([]string{"???"}, nil)
	require.Error(t, err)
}

func TestColorCode(t *testing.T) {
	code, ok := ColorCode("DARK_RED")
	assert.True(t, ok)
	assert.Equal(t, "§4", code)

	_, ok = ColorCode("none")
	assert.False(t, ok)
}
