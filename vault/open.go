package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/config"
	"github.com/bitfsorg/assetvault/encryption"
	"github.com/bitfsorg/assetvault/namespace"
	"github.com/bitfsorg/assetvault/storage"
	"github.com/bitfsorg/assetvault/token"
)

// OpenOptions adjust how Open wires the vault.
type OpenOptions struct {
	// Drive replaces the Google Drive client for the remote backend.
	Drive storage.DriveAPI

	// Registerer receives the vault metrics; nil disables them.
	Registerer prometheus.Registerer
}

// Open builds a Vault from configuration: the catalog database under the
// data directory, the configured backend, the encryption pipeline and the
// token service. A missing master key or token secret does not fail Open;
// Health reports it and the operations that need them fail.
func Open(ctx context.Context, cfg config.Config, log *zap.Logger, opts OpenOptions) (*Vault, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	pipeline, err := openPipeline(cfg.MasterKey)
	if err != nil && !errors.Is(err, encryption.ErrMissingKey) {
		return nil, fmt.Errorf("vault: %w", err)
	}
	if pipeline == nil {
		log.Warn("no master key configured; secure uploads and downloads will fail")
	}

	var tokens *token.Service
	if cfg.TokenSecret != "" {
		if tokens, err = token.NewService([]byte(cfg.TokenSecret), cfg.TokenTTL); err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
	} else {
		log.Warn("no token secret configured; download tokens cannot be issued")
	}

	store, err := catalog.OpenBoltStore(cfg.CatalogPath())
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}

	kind, err := storage.ParseKind(cfg.Backend)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("vault: %w", err)
	}

	drive := opts.Drive
	if kind == storage.KindRemote && drive == nil {
		drive, err = storage.NewDriveService(ctx, storage.DriveConfig{
			ClientID:     cfg.DriveClientID,
			ClientSecret: cfg.DriveClientSecret,
			RefreshToken: cfg.DriveRefreshToken,
			SharedDrives: cfg.DriveSharedDrives,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("vault: %w", err)
		}
	}

	backend, err := storage.New(storage.Options{
		Kind:              kind,
		LocalRoot:         cfg.StoragePath(),
		RemoteRootID:      cfg.RemoteRootID,
		PublicURLTemplate: cfg.PublicURLTemplate,
	}, drive, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("vault: %w", err)
	}

	var ns namespace.Ensurer = namespace.NoopProvisioner{RootID: cfg.RemoteRootID}
	if remote, ok := backend.(*storage.RemoteBackend); ok {
		if ns, err = namespace.NewProvisioner(remote, store, remote.RootID(), 0, namespace.WithLogger(log)); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("vault: %w", err)
		}
	}

	var observer Observer
	if opts.Registerer != nil {
		if observer, err = NewPrometheusObserver("assetvault", opts.Registerer); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("vault: %w", err)
		}
	}

	v, err := New(Deps{
		Backend:        backend,
		Pipeline:       pipeline,
		Tokens:         tokens,
		Catalog:        store,
		Namespaces:     ns,
		BackendTimeout: cfg.BackendTimeout,
		Observer:       observer,
		Logger:         log,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	v.closers = append(v.closers, store.Close)

	log.Info("vault opened",
		zap.String("backend", string(kind)),
		zap.String("catalog", cfg.CatalogPath()),
		zap.Bool("encryption", pipeline != nil),
		zap.Bool("tokens", tokens != nil))
	return v, nil
}

func openPipeline(secret string) (*encryption.Pipeline, error) {
	key, err := encryption.ResolveMasterKey(secret)
	if err != nil {
		return nil, err
	}
	return encryption.NewPipeline(key)
}
