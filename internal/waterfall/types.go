// Package waterfall ranks data sources and picks the winning value for a
// business field from competing contributions.
package waterfall

// Source names a provider of business field values.
type Source = string

// Known sources, highest priority first.
const (
	SourceUserManual    Source = "user_manual"
	SourceGMBAPI        Source = "gmb_api"
	SourceAdminImport   Source = "admin_import"
	SourceScraped       Source = "scraped"
	SourceCSVUpload     Source = "csv_upload"
	SourceSystemDefault Source = "system_default"
)

// defaultSources is the built-in priority table.
var defaultSources = []SourceConfig{
	{Name: SourceUserManual, Priority: 100},
	{Name: SourceGMBAPI, Priority: 90},
	{Name: SourceAdminImport, Priority: 80},
	{Name: SourceScraped, Priority: 70},
	{Name: SourceCSVUpload, Priority: 60},
	{Name: SourceSystemDefault, Priority: 50},
}

// DefaultConfig returns the built-in priority table with no field overrides.
func DefaultConfig() *Config {
	sources := make([]SourceConfig, len(defaultSources))
	copy(sources, defaultSources)
	return &Config{Defaults: DefaultsConfig{Sources: sources}}
}
