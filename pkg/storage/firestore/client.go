// Copyright 2025 Certen Protocol
//
// Package firestore implements pkg/keri/storage's interfaces over
// cloud.google.com/go/firestore, adapted from pkg/firestore/client.go's
// Client wrapper (Firebase Admin SDK bootstrap, enabled/no-op toggle for
// local development) and pkg/firestore/types.go's document-shape
// conventions. This is this repo's analogue of the original Rust
// source's kerihost-db/src/dynamodb binding — a managed NoSQL document
// store playing the role spec.md's storage-engine example assigns to
// DynamoDB, bound here to a dependency the teacher already carries.
package firestore

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Client wraps a Firestore client with witness-specific collection
// layout and an enabled/no-op toggle for local development.
type Client struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	logger    *log.Logger
	enabled   bool
	mu        sync.RWMutex
}

// ClientConfig configures the Firestore client.
type ClientConfig struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Logger          *log.Logger
}

// DefaultConfig builds a ClientConfig from environment variables,
// mirroring the teacher's FIREBASE_PROJECT_ID / GOOGLE_APPLICATION_CREDENTIALS
// / FIRESTORE_ENABLED convention.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ProjectID:       os.Getenv("WITNESS_FIRESTORE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Enabled:         os.Getenv("WITNESS_FIRESTORE_ENABLED") == "true",
		Logger:          log.New(os.Stdout, "[firestore] ", log.LstdFlags),
	}
}

// NewClient initializes a Firestore-backed client. If cfg.Enabled is
// false, it returns a no-op client whose storage bindings all fail with
// an explicit configuration error rather than silently dropping writes
// — unlike the teacher's audit-sync use case, a witness's KEL is not
// something that is safe to no-op.
func NewClient(ctx context.Context, cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[firestore] ", log.LstdFlags)
	}

	client := &Client{projectID: cfg.ProjectID, logger: cfg.Logger, enabled: cfg.Enabled}
	if !cfg.Enabled {
		cfg.Logger.Println("firestore storage disabled")
		return client, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("keri: WITNESS_FIRESTORE_PROJECT_ID is required when firestore storage is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("keri: initialize firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("keri: create firestore client: %w", err)
	}
	client.app = app
	client.firestore = fs
	cfg.Logger.Printf("firestore storage initialized for project %s", cfg.ProjectID)
	return client, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

func (c *Client) collection(path string) (*gcpfirestore.CollectionRef, error) {
	if !c.IsEnabled() || c.firestore == nil {
		return nil, errNotEnabled
	}
	return c.firestore.Collection(path), nil
}

var errNotEnabled = fmt.Errorf("keri: firestore storage not enabled")
