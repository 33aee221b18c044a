package gcp

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const (
	ScopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"
	ScopeSpreadsheets  = "https://www.googleapis.com/auth/spreadsheets"
)

// ClientOptions resolves Google credentials once at startup. A key file takes
// precedence; otherwise application default credentials are used.
func ClientOptions(ctx context.Context, credentialsFile string, scopes ...string) ([]option.ClientOption, error) {
	creds, err := loadCredentials(ctx, credentialsFile, scopes)
	if err != nil {
		return nil, err
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

func loadCredentials(ctx context.Context, credentialsFile string, scopes []string) (*google.Credentials, error) {
	if credentialsFile != "" {
		data, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse credentials file: %w", err)
		}
		return creds, nil
	}

	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to get default credentials: %w", err)
	}
	return creds, nil
}
