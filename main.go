// Copyright 2025 Certen Protocol
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	cmted25519 "github.com/cometbft/cometbft/crypto/ed25519"

	"github.com/seriouscoderone/kerihost/pkg/config"
	"github.com/seriouscoderone/kerihost/pkg/keri/escrow"
	"github.com/seriouscoderone/kerihost/pkg/keri/processor"
	"github.com/seriouscoderone/kerihost/pkg/keri/sig"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
	"github.com/seriouscoderone/kerihost/pkg/keri/witness"
	"github.com/seriouscoderone/kerihost/pkg/server"
	"github.com/seriouscoderone/kerihost/pkg/storage/firestore"
	kvstorage "github.com/seriouscoderone/kerihost/pkg/storage/kv"
	"github.com/seriouscoderone/kerihost/pkg/storage/memory"
)

func main() {
	log.Printf("🚀 Starting KERI Witness Service")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	signer, err := loadOrGenerateWitnessKey(cfg)
	if err != nil {
		log.Fatalf("load witness key: %v", err)
	}
	witnessAID := signer.PublicKeyQb64()
	log.Printf("🔑 Witness AID: %s", witnessAID)

	kel, state, receipts, esc, closeStorage, err := openStorage(cfg)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer func() {
		if err := closeStorage(); err != nil {
			log.Printf("storage close error: %v", err)
		}
	}()
	log.Printf("✅ Storage backend ready: %s", cfg.StorageBackend)

	registry := sig.NewRegistry()
	registry.Register(sig.Ed25519Verifier{})
	registry.Register(sig.Secp256k1Verifier{})

	proc := processor.New(processor.Deps{
		KEL:           kel,
		State:         state,
		Escrow:        esc,
		Registry:      registry,
		WitnessPrefix: witnessAID,
	})

	reconcilerCfg := escrow.DefaultConfig()
	reconcilerCfg.CheckInterval = cfg.EscrowCheckInterval
	reconcilerCfg.MaxReescrowsPerWindow = cfg.MaxReescrowsPerWindow
	reconcilerCfg.MaxBatchSize = cfg.MaxBatchSize
	reconciler := escrow.New(escrow.Deps{
		KEL:       kel,
		State:     state,
		Receipts:  receipts,
		Escrow:    esc,
		Processor: proc,
	}, reconcilerCfg)

	w := witness.New(witness.Deps{
		KEL:        kel,
		State:      state,
		Receipts:   receipts,
		Escrow:     esc,
		Processor:  proc,
		Reconciler: reconciler,
		WitnessAID: witnessAID,
		PublicURL:  cfg.PublicURL,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go reconciler.Start(ctx)
	log.Printf("✅ Escrow reconciler started: interval=%s maxBatch=%d", cfg.EscrowCheckInterval, cfg.MaxBatchSize)

	metrics := server.NewMetrics()
	srv := server.New(w, metrics, nil)
	httpServer := srv.HTTPServer(cfg.ListenAddr)

	go func() {
		log.Printf("🌐 Witness API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	log.Printf("✅ Witness ready - oobi: %s", witness.WitnessOOBI(cfg.PublicURL, witnessAID, witnessAID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 Shutting down witness...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx, httpServer); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}

	log.Printf("✅ Witness stopped")
}

// loadOrGenerateWitnessKey loads the witness's Ed25519 signing key from
// WitnessKeyPath, generating and persisting a new one if absent, grounded
// on the teacher's loadOrGenerateEd25519Key generate-if-absent convention.
func loadOrGenerateWitnessKey(cfg *config.Config) (*sig.Ed25519Signer, error) {
	keyPath := cfg.WitnessKeyPath
	if keyPath == "" {
		keyPath = filepath.Join(cfg.DataDir, "witness_ed25519.hex")
	}

	if err := os.MkdirAll(filepath.Dir(keyPath), 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		log.Printf("🔑 Generating new witness Ed25519 key...")
		priv := cmted25519.GenPrivKey()
		if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
			return nil, fmt.Errorf("save witness key to %s: %w", keyPath, err)
		}
		log.Printf("✅ Generated and saved new witness key: %s", keyPath)
		return sig.NewEd25519Signer(priv), nil
	}

	log.Printf("🔑 Loading existing witness key from %s...", keyPath)
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read witness key from %s: %w", keyPath, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode witness key from %s: %w", keyPath, err)
	}
	if len(keyBytes) != cmted25519.PrivKeySize {
		return nil, fmt.Errorf("invalid witness key size: expected %d, got %d", cmted25519.PrivKeySize, len(keyBytes))
	}
	log.Printf("✅ Loaded existing witness key from %s", keyPath)
	return sig.NewEd25519Signer(cmted25519.PrivKey(keyBytes)), nil
}

// openStorage selects and constructs the storage bindings named by
// cfg.StorageBackend, returning a close func for whichever resources the
// chosen binding holds open.
func openStorage(cfg *config.Config) (storage.KELStore, storage.StateStore, storage.ReceiptStore, storage.EscrowStore, func() error, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return memory.NewKEL(), memory.NewState(), memory.NewReceipts(), memory.NewEscrow(cfg.EscrowTTL), func() error { return nil }, nil

	case config.StorageKV:
		if err := os.MkdirAll(cfg.KVDataDir, 0o700); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("create kv data dir: %w", err)
		}
		db, err := dbm.NewDB("witness", dbm.GoLevelDBBackend, cfg.KVDataDir)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("open kv database: %w", err)
		}
		return kvstorage.NewKEL(db), kvstorage.NewState(db), kvstorage.NewReceipts(db), kvstorage.NewEscrow(db, cfg.EscrowTTL), db.Close, nil

	case config.StorageFirestore:
		fsCfg := &firestore.ClientConfig{
			ProjectID:       cfg.FirestoreProjectID,
			CredentialsFile: cfg.FirestoreCredential,
			Enabled:         true,
		}
		client, err := firestore.NewClient(context.Background(), fsCfg)
		if err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("open firestore client: %w", err)
		}
		return firestore.NewKEL(client), firestore.NewState(client), firestore.NewReceipts(client), firestore.NewEscrow(client, cfg.EscrowTTL), client.Close, nil

	default:
		return nil, nil, nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
