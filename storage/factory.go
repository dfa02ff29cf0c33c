package storage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/bitfsorg/assetvault/errkind"
)

// New selects and builds the backend named by opts.Kind. It is called once
// at startup; the rest of the system only sees the Backend interface.
// api is required for KindRemote and ignored otherwise.
func New(opts Options, api DriveAPI, log *zap.Logger) (Backend, error) {
	switch opts.Kind {
	case KindLocal:
		return NewLocalBackend(opts.LocalRoot)
	case KindRemote:
		return NewRemoteBackend(api, opts.RemoteRootID, opts.PublicURLTemplate, log)
	default:
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Kind))
	}
}
