package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/arlo/mail-triage/internal/core"
	"github.com/arlo/mail-triage/internal/directory"
	"github.com/arlo/mail-triage/internal/rules"
)

// LoadRules reads the category rule document. A missing or malformed
// document is a ConfigurationError: rules are loaded once at startup
// and never recovered mid-run.
func LoadRules(path string) ([]rules.CategoryRule, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read rule document %s: %v", core.ErrConfiguration, path, err)
	}

	var ruleset []rules.CategoryRule
	if err := v.UnmarshalKey("rules", &ruleset); err != nil {
		return nil, fmt.Errorf("%w: malformed rule document %s: %v", core.ErrConfiguration, path, err)
	}
	for i := range ruleset {
		if err := ruleset[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
		}
	}
	return ruleset, nil
}

// LoadSenderDirectory reads the sender directory document.
func LoadSenderDirectory(path string) ([]directory.Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read sender directory %s: %v", core.ErrConfiguration, path, err)
	}

	var entries []directory.Entry
	if err := v.UnmarshalKey("senders", &entries); err != nil {
		return nil, fmt.Errorf("%w: malformed sender directory %s: %v", core.ErrConfiguration, path, err)
	}
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfiguration, err)
		}
	}
	return entries, nil
}
