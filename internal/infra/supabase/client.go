package supabase

import (
	"fmt"
	"strings"

	"github.com/tamzid2001/docuflux/internal/domain"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// Client wraps the Supabase client used for the run ledger and raw uploads.
type Client struct {
	client *supabase.Client
	logger domain.Logger
}

// NewClient connects to the Supabase project at url. Both url and key are required.
func NewClient(url, key string, logger domain.Logger) (*Client, error) {
	url = strings.TrimRight(url, "/")
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	logger.Info("Supabase client initialized successfully", "url", url)
	return &Client{client: client, logger: logger}, nil
}

// DB returns the typed Supabase client for repository use.
func (c *Client) DB() *supabase.Client {
	return c.client
}

// Storage returns the storage API client bound to the same project.
func (c *Client) Storage() *storage_go.Client {
	return c.client.Storage
}
