// shared/text/renderer.go
package text

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Renderer turns upstream rich text into the downstream legacy-formatted string.
type Renderer interface {
	Render(raw, locale string) string
}

// ResetCode clears color and formatting in the legacy format.
const ResetCode = "§r"

var colorCodes = map[string]string{
	"black":        "§0",
	"dark_blue":    "§1",
	"dark_green":   "§2",
	"dark_aqua":    "§3",
	"dark_red":     "§4",
	"dark_purple":  "§5",
	"gold":         "§6",
	"gray":         "§7",
	"dark_gray":    "§8",
	"blue":         "§9",
	"green":        "§a",
	"aqua":         "§b",
	"red":          "§c",
	"light_purple": "§d",
	"yellow":       "§e",
	"white":        "§f",
}

// ColorCode returns the legacy code for a named chat color.
func ColorCode(name string) (string, bool) {
	code, ok := colorCodes[strings.ToLower(name)]
	return code, ok
}

// component is the upstream JSON chat component.
type component struct {
	Text          string            `json:"text"`
	Translate     string            `json:"translate"`
	With          []json.RawMessage `json:"with"`
	Extra         []json.RawMessage `json:"extra"`
	Color         string            `json:"color"`
	Bold          *bool             `json:"bold"`
	Italic        *bool             `json:"italic"`
	Underlined    *bool             `json:"underlined"`
	Strikethrough *bool             `json:"strikethrough"`
	Obfuscated    *bool             `json:"obfuscated"`
}

type style struct {
	color         string
	bold          bool
	italic        bool
	underlined    bool
	strikethrough bool
	obfuscated    bool
}

func (s style) inherit(c component) style {
	if code, ok := ColorCode(c.Color); ok {
		s.color = code
	} else if strings.EqualFold(c.Color, "reset") {
		s.color = ""
	}
	apply := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&s.bold, c.Bold)
	apply(&s.italic, c.Italic)
	apply(&s.underlined, c.Underlined)
	apply(&s.strikethrough, c.Strikethrough)
	apply(&s.obfuscated, c.Obfuscated)
	return s
}

func (s style) codes() string {
	var b strings.Builder
	b.WriteString(s.color)
	if s.obfuscated {
		b.WriteString("§k")
	}
	if s.bold {
		b.WriteString("§l")
	}
	if s.strikethrough {
		b.WriteString("§m")
	}
	if s.underlined {
		b.WriteString("§n")
	}
	if s.italic {
		b.WriteString("§o")
	}
	return b.String()
}

// MessageRenderer renders JSON chat components with per-locale translation
// tables. Plain (non-JSON) text is returned unchanged.
type MessageRenderer struct {
	matcher  language.Matcher
	catalogs []map[string]string
}

// NewMessageRenderer builds a renderer from translation tables keyed by locale
// ("en_us", "de-DE", ...). The first locale in order is the fallback.
func NewMessageRenderer(order []string, catalogs map[string]map[string]string) (*MessageRenderer, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("at least one locale is required")
	}
	tags := make([]language.Tag, 0, len(order))
	tables := make([]map[string]string, 0, len(order))
	for _, locale := range order {
		tag, err := parseLocale(locale)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
		}
		tags = append(tags, tag)
		tables = append(tables, catalogs[locale])
	}
	return &MessageRenderer{
		matcher:  language.NewMatcher(tags),
		catalogs: tables,
	}, nil
}

// DefaultRenderer returns a renderer with the built-in tables.
func DefaultRenderer() *MessageRenderer {
	r, err := NewMessageRenderer([]string{"en_us", "de_de"}, builtinCatalogs)
	if err != nil {
		panic(err)
	}
	return r
}

// Render implements Renderer.
func (r *MessageRenderer) Render(raw, locale string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	switch trimmed[0] {
	case '{', '[', '"':
	default:
		return raw
	}

	catalog := r.catalogFor(locale)
	w := &writer{}
	if !r.renderRaw(json.RawMessage(trimmed), style{}, catalog, w) {
		return raw
	}
	return w.String()
}

func (r *MessageRenderer) catalogFor(locale string) int {
	tag, err := parseLocale(locale)
	if err != nil {
		return 0
	}
	_, index, confidence := r.matcher.Match(tag)
	if confidence == language.No {
		return 0
	}
	return index
}

// renderRaw renders a component, a string or an array of components.
func (r *MessageRenderer) renderRaw(raw json.RawMessage, parent style, catalog int, w *writer) bool {
	if len(raw) == 0 {
		return true
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false
		}
		w.write(parent, s)
		return true
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil {
			return false
		}
		if len(parts) == 0 {
			return true
		}
		// The first element is the parent of the others.
		var head component
		if err := json.Unmarshal(parts[0], &head); err == nil && parts[0][0] == '{' {
			head.Extra = append(head.Extra, parts[1:]...)
			return r.renderComponent(head, parent, catalog, w)
		}
		for _, p := range parts {
			if !r.renderRaw(p, parent, catalog, w) {
				return false
			}
		}
		return true
	case '{':
		var c component
		if err := json.Unmarshal(raw, &c); err != nil {
			return false
		}
		return r.renderComponent(c, parent, catalog, w)
	default:
		w.write(parent, string(raw))
		return true
	}
}

var placeholder = regexp.MustCompile(`%(?:(\d+)\$)?s`)

func (r *MessageRenderer) renderComponent(c component, parent style, catalog int, w *writer) bool {
	st := parent.inherit(c)

	if c.Translate != "" {
		args := make([]string, 0, len(c.With))
		for _, a := range c.With {
			aw := &writer{}
			if !r.renderRaw(a, st, catalog, aw) {
				return false
			}
			args = append(args, aw.String()+st.codesAfterReset())
		}
		next := 0
		format := r.lookup(c.Translate, catalog)
		out := placeholder.ReplaceAllStringFunc(format, func(m string) string {
			sub := placeholder.FindStringSubmatch(m)
			i := next
			if sub[1] != "" {
				n, _ := strconv.Atoi(sub[1])
				i = n - 1
			} else {
				next++
			}
			if i < 0 || i >= len(args) {
				return ""
			}
			return args[i]
		})
		w.write(st, out)
	} else {
		w.write(st, c.Text)
	}

	for _, e := range c.Extra {
		if !r.renderRaw(e, st, catalog, w) {
			return false
		}
	}
	return true
}

func (r *MessageRenderer) lookup(key string, catalog int) string {
	if v, ok := r.catalogs[catalog][key]; ok {
		return v
	}
	if v, ok := r.catalogs[0][key]; ok {
		return v
	}
	return key
}

// codesAfterReset restores st after an argument that may have changed style.
func (s style) codesAfterReset() string {
	if codes := s.codes(); codes != "" {
		return ResetCode + codes
	}
	return ""
}

// writer emits style codes only when the style changes between segments.
type writer struct {
	b    strings.Builder
	last string
}

func (w *writer) write(st style, s string) {
	if s == "" {
		return
	}
	codes := st.codes()
	if codes != w.last {
		if w.last != "" {
			w.b.WriteString(ResetCode)
		}
		w.b.WriteString(codes)
		w.last = codes
	}
	w.b.WriteString(s)
}

func (w *writer) String() string { return w.b.String() }

func parseLocale(locale string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}
