package models

// SearchSettings is the admin-configurable behavior of the search subsystem.
// It is owned by the host application; the core only reads it. An absent or
// unreadable settings document is treated as disabled, not as an error.
type SearchSettings struct {
	Enabled              bool     `bson:"enabled" json:"enabled"`
	AIModeEnabled        bool     `bson:"ai_mode_enabled" json:"ai_mode_enabled"`
	SelectedCollections  []string `bson:"selected_collections" json:"selected_collections"`
	DismissedCollections []string `bson:"dismissed_collections" json:"dismissed_collections"`
	AutocompleteEnabled  bool     `bson:"autocomplete_enabled" json:"autocomplete_enabled"`
	CacheDurationHours   int      `bson:"cache_duration" json:"cache_duration"`
	ResultsLimit         int      `bson:"results_limit" json:"results_limit"`
}

// DefaultSearchSettings returns the settings applied before an admin has
// saved any.
func DefaultSearchSettings() SearchSettings {
	return SearchSettings{
		Enabled:              true,
		AIModeEnabled:        true,
		SelectedCollections:  []string{},
		DismissedCollections: []string{},
		AutocompleteEnabled:  true,
		CacheDurationHours:   1,
		ResultsLimit:         20,
	}
}

// SearchSettingsPatch is a partial settings update; nil fields are left
// unchanged.
type SearchSettingsPatch struct {
	Enabled              *bool     `json:"enabled,omitempty"`
	AIModeEnabled        *bool     `json:"ai_mode_enabled,omitempty"`
	SelectedCollections  *[]string `json:"selected_collections,omitempty"`
	DismissedCollections *[]string `json:"dismissed_collections,omitempty"`
	AutocompleteEnabled  *bool     `json:"autocomplete_enabled,omitempty"`
	CacheDurationHours   *int      `json:"cache_duration,omitempty"`
	ResultsLimit         *int      `json:"results_limit,omitempty"`
}

// Apply merges the patch into s and returns the result.
func (p SearchSettingsPatch) Apply(s SearchSettings) SearchSettings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.AIModeEnabled != nil {
		s.AIModeEnabled = *p.AIModeEnabled
	}
	if p.SelectedCollections != nil {
		s.SelectedCollections = *p.SelectedCollections
	}
	if p.DismissedCollections != nil {
		s.DismissedCollections = *p.DismissedCollections
	}
	if p.AutocompleteEnabled != nil {
		s.AutocompleteEnabled = *p.AutocompleteEnabled
	}
	if p.CacheDurationHours != nil {
		s.CacheDurationHours = *p.CacheDurationHours
	}
	if p.ResultsLimit != nil {
		s.ResultsLimit = *p.ResultsLimit
	}
	return s
}
