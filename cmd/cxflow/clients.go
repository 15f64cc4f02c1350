package main

import (
	"context"
	"fmt"

	"github.com/acctools/cxflow/internal/auth"
	"github.com/acctools/cxflow/internal/gmailx"
	"github.com/acctools/cxflow/internal/sheetx"
	"github.com/acctools/cxflow/internal/shopify"
)

// gmailClient authenticates and wraps the Gmail API.
func gmailClient(ctx context.Context) (*gmailx.Client, error) {
	svc, err := auth.GmailService(ctx, cfg.Gmail.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return gmailx.New(ctx, svc)
}

// sheetsClient authenticates and wraps the Sheets API for the configured
// spreadsheet.
func sheetsClient(ctx context.Context) (*sheetx.Client, error) {
	if cfg.Sheets.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets.spreadsheet_id is required")
	}
	svc, err := auth.SheetsService(ctx, cfg.Gmail.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return sheetx.New(svc, cfg.Sheets.SpreadsheetID), nil
}

// shopifyClient builds the Admin API client.
func shopifyClient() (*shopify.Client, error) {
	if err := cfg.ValidateShopify(); err != nil {
		return nil, err
	}
	return shopify.New(cfg.Shopify.Shop, cfg.Shopify.AccessToken, cfg.Shopify.APIVersion), nil
}
