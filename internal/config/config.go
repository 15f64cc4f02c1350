// Package config loads the cxflow configuration into an explicit struct.
//
// All credentials and tunables live in cxflow.yaml (or CXFLOW_* environment
// overrides); the resulting Config is constructed once in main and passed to
// each component. Nothing reads configuration ambiently.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Gmail holds mailbox access settings.
type Gmail struct {
	CredentialsPath string `mapstructure:"credentials"`
}

// Sheets identifies the spreadsheet all sync jobs write to.
type Sheets struct {
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
}

// Shopify holds Admin API access settings.
type Shopify struct {
	Shop        string `mapstructure:"shop"`
	AccessToken string `mapstructure:"access_token"`
	APIVersion  string `mapstructure:"api_version"`
}

// Notion holds template-store access settings.
type Notion struct {
	APIKey           string `mapstructure:"api_key"`
	MasterDatabaseID string `mapstructure:"master_database_id"`
}

// Gemini holds language-model access settings.
type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Labels names the Gmail labels that drive the classify/draft pipeline.
type Labels struct {
	Trigger   string `mapstructure:"trigger"`
	Processed string `mapstructure:"processed"`
}

// Tracker configures the inbound tracker sync.
type Tracker struct {
	SheetName             string   `mapstructure:"sheet_name"`
	CXEmail               string   `mapstructure:"cx_email"`
	LabelQueries          []string `mapstructure:"label_queries"`
	SearchAfter           string   `mapstructure:"search_after"`
	RequiredLabelPrefixes []string `mapstructure:"required_label_prefixes"`
	Timezone              string   `mapstructure:"timezone"`
}

// Orders configures the order export sync.
type Orders struct {
	SheetName string `mapstructure:"sheet_name"`
}

// Classify configures the auto-labeler search window and taxonomy source.
type Classify struct {
	SearchAfter  string `mapstructure:"search_after"`
	TaxonomyFile string `mapstructure:"taxonomy_file"`
}

// BulkOrders configures order and draft creation from the operations sheets.
type BulkOrders struct {
	OrdersSheet string `mapstructure:"orders_sheet"`
	DraftsSheet string `mapstructure:"drafts_sheet"`
	DraftEmail  string `mapstructure:"draft_email"`
}

// Config is the full cxflow configuration.
type Config struct {
	Gmail    Gmail      `mapstructure:"gmail"`
	Sheets   Sheets     `mapstructure:"sheets"`
	Shopify  Shopify    `mapstructure:"shopify"`
	Notion   Notion     `mapstructure:"notion"`
	Gemini   Gemini     `mapstructure:"gemini"`
	Labels   Labels     `mapstructure:"labels"`
	Tracker  Tracker    `mapstructure:"tracker"`
	Orders   Orders     `mapstructure:"orders"`
	Classify Classify   `mapstructure:"classify"`
	Bulk     BulkOrders `mapstructure:"bulk_orders"`
	StateDB  string     `mapstructure:"state_db"`
	LogLevel string     `mapstructure:"log_level"`
}

// Load reads configuration from the given file (or, when path is empty, from
// cxflow.yaml in the working directory) with CXFLOW_* env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cxflow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("CXFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine when env vars carry everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gmail.credentials", "credentials.json")
	v.SetDefault("shopify.api_version", "2024-10")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("labels.trigger", "GeminiLabeled")
	v.SetDefault("labels.processed", "GeminiMessage")
	v.SetDefault("tracker.sheet_name", "inbound_tracker")
	v.SetDefault("tracker.required_label_prefixes", []string{"Inquiry/", "Complaint/"})
	v.SetDefault("tracker.timezone", "America/New_York")
	v.SetDefault("orders.sheet_name", "Orders")
	v.SetDefault("bulk_orders.orders_sheet", "CreateOrders")
	v.SetDefault("bulk_orders.drafts_sheet", "Seeding")
	v.SetDefault("state_db", ".cxflow/state.db")
	v.SetDefault("log_level", "info")
}

// ValidateShopify checks the keys the order and drafts commands need.
func (c *Config) ValidateShopify() error {
	if c.Shopify.Shop == "" || c.Shopify.AccessToken == "" {
		return fmt.Errorf("shopify.shop and shopify.access_token are required")
	}
	return nil
}

// ValidateNotion checks the keys the drafts command needs.
func (c *Config) ValidateNotion() error {
	if c.Notion.APIKey == "" || c.Notion.MasterDatabaseID == "" {
		return fmt.Errorf("notion.api_key and notion.master_database_id are required")
	}
	return nil
}

// ValidateGemini checks the keys the classify and drafts commands need.
func (c *Config) ValidateGemini() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini.api_key is required")
	}
	return nil
}

// ValidateBulkDrafts checks the keys the seeding drafts command needs.
func (c *Config) ValidateBulkDrafts() error {
	if c.Bulk.DraftEmail == "" {
		return fmt.Errorf("bulk_orders.draft_email is required")
	}
	return nil
}

// ValidateTracker checks the keys the tracker command needs.
func (c *Config) ValidateTracker() error {
	if c.Sheets.SpreadsheetID == "" {
		return fmt.Errorf("sheets.spreadsheet_id is required")
	}
	if len(c.Tracker.LabelQueries) == 0 {
		return fmt.Errorf("tracker.label_queries must list at least one label query")
	}
	if c.Tracker.CXEmail == "" {
		return fmt.Errorf("tracker.cx_email is required")
	}
	return nil
}
