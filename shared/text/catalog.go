// shared/text/catalog.go
package text

// builtinCatalogs covers the translation keys servers commonly put into team
// prefixes and display names. Unknown keys render as the key itself.
var builtinCatalogs = map[string]map[string]string{
	"en_us": {
		"team.visibility.always":            "Always",
		"team.visibility.never":             "Never",
		"team.visibility.hideForOtherTeams": "Hide for other teams",
		"team.visibility.hideForOwnTeam":    "Hide for own team",
		"chat.square_brackets":              "[%s]",
		"chat.type.team.text":               "%s <%s> %s",
		"gui.none":                          "None",
		"options.on":                        "ON",
		"options.off":                       "OFF",
	},
	"de_de": {
		"team.visibility.always":            "Immer",
		"team.visibility.never":             "Nie",
		"team.visibility.hideForOtherTeams": "Für andere Teams ausblenden",
		"team.visibility.hideForOwnTeam":    "Für eigenes Team ausblenden",
		"chat.square_brackets":              "[%s]",
		"gui.none":                          "Keine",
		"options.on":                        "AN",
		"options.off":                       "AUS",
	},
}
