package engine

import (
	"snip-go/internal/matcher"
	"snip-go/internal/placeholder"
	"snip-go/internal/site"
	"snip-go/internal/suggest"
)

// Config controls a Session.
type Config struct {
	Hotkey            Hotkey
	Matcher           matcher.Options
	PlaceholderPolicy placeholder.Policy

	// SuggestEnabled turns on the trigger-character suggestion session.
	SuggestEnabled bool
	Suggest        suggest.Options

	// AutoPairs maps an opening character to the closing character inserted
	// with it.
	AutoPairs map[string]string
	Blocklist *site.Blocklist
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Hotkey:            DefaultHotkey,
		Matcher:           matcher.DefaultOptions(),
		PlaceholderPolicy: placeholder.Cycle,
		SuggestEnabled:    true,
		Suggest:           suggest.Options{Trigger: suggest.DefaultTrigger, MaxResults: 10},
	}
}
