package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/catalog"
	"github.com/bitfsorg/assetvault/encryption"
	"github.com/bitfsorg/assetvault/errkind"
	"github.com/bitfsorg/assetvault/namespace"
	"github.com/bitfsorg/assetvault/storage"
	"github.com/bitfsorg/assetvault/token"
)

// DefaultBackendTimeout bounds each backend call when Deps leaves it unset.
const DefaultBackendTimeout = 30 * time.Second

// Vault is the storage facade. The HTTP server and the CLI call Vault
// methods to store assets, mint download tokens, and retrieve plaintext.
type Vault struct {
	backend    storage.Backend
	pipeline   *encryption.Pipeline // nil when no master key is configured
	tokens     *token.Service       // nil when no signing secret is configured
	catalog    catalog.Store
	namespaces namespace.Ensurer
	timeout    time.Duration
	observer   Observer
	log        *zap.Logger
	now        func() time.Time
	newID      func() string

	// closers run on Close in order.
	closers []func() error
}

// Deps are the collaborators a Vault is assembled from. Backend and
// Catalog are required; Pipeline and Tokens may be nil, in which case the
// operations that need them fail with a configuration error.
type Deps struct {
	Backend        storage.Backend
	Pipeline       *encryption.Pipeline
	Tokens         *token.Service
	Catalog        catalog.Store
	Namespaces     namespace.Ensurer // defaults to a no-op provisioner
	BackendTimeout time.Duration
	Observer       Observer
	Logger         *zap.Logger
	Clock          func() time.Time
	NewID          func() string
}

// New assembles a Vault from deps.
func New(deps Deps) (*Vault, error) {
	if deps.Backend == nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: backend", ErrMissingDependency))
	}
	if deps.Catalog == nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: catalog", ErrMissingDependency))
	}

	v := &Vault{
		backend:    deps.Backend,
		pipeline:   deps.Pipeline,
		tokens:     deps.Tokens,
		catalog:    deps.Catalog,
		namespaces: deps.Namespaces,
		timeout:    deps.BackendTimeout,
		observer:   deps.Observer,
		log:        deps.Logger,
		now:        deps.Clock,
		newID:      deps.NewID,
	}
	if v.namespaces == nil {
		v.namespaces = namespace.NoopProvisioner{}
	}
	if v.timeout <= 0 {
		v.timeout = DefaultBackendTimeout
	}
	if v.observer == nil {
		v.observer = nopObserver{}
	}
	if v.log == nil {
		v.log = zap.NewNop()
	}
	v.log = v.log.Named("vault")
	if v.now == nil {
		v.now = time.Now
	}
	if v.newID == nil {
		v.newID = uuid.NewString
	}
	return v, nil
}

// Backend returns the active backend.
func (v *Vault) Backend() storage.Backend { return v.backend }

// Health reports configuration problems that would make uploads or
// downloads fail: a missing master key or a missing token secret.
func (v *Vault) Health(context.Context) error {
	var errs []error
	if v.pipeline == nil {
		errs = append(errs, errkind.Configuration.Wrap(encryption.ErrMissingKey))
	}
	if v.tokens == nil {
		errs = append(errs, errkind.Configuration.Wrap(token.ErrMissingSecret))
	}
	return errors.Join(errs...)
}

// List returns stored assets matching f.
func (v *Vault) List(ctx context.Context, f catalog.Filter) ([]*catalog.Asset, error) {
	assets, err := v.catalog.ListAssets(ctx, f)
	if err != nil {
		return nil, errkind.Backend.Wrap(fmt.Errorf("vault: list assets: %w", err))
	}
	return assets, nil
}

// Close releases resources acquired by Open. Vaults built with New own
// nothing and Close is a no-op.
func (v *Vault) Close() error {
	var errs []error
	for _, c := range v.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// withTimeout derives the context a single backend call runs under.
func (v *Vault) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, v.timeout)
}

// backendErr classifies a backend failure, turning deadline overruns into
// ErrBackendTimeout.
func backendErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errkind.Backend.Wrap(fmt.Errorf("vault: %s: %w: %w", op, ErrBackendTimeout, err))
	}
	if errkind.Of(err) == errkind.KindUnknown {
		return errkind.Backend.Wrap(fmt.Errorf("vault: %s: %w", op, err))
	}
	return fmt.Errorf("vault: %s: %w", op, err)
}
