package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bitfsorg/assetvault/errkind"
)

// MaxDownloadSize is the maximum blob size accepted from the remote
// provider (1 GB). This prevents memory exhaustion from a bad response.
const MaxDownloadSize = 1 << 30

// DriveConfig holds the OAuth2 credentials for Google Drive.
type DriveConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	RedirectURL  string

	// SharedDrives enables supportsAllDrives on every request.
	SharedDrives bool
}

// DriveService implements DriveAPI with the Google Drive v3 API.
type DriveService struct {
	files       *drive.FilesService
	permissions *drive.PermissionsService
	allDrives   bool
	maxDownload int64
}

// Compile-time interface check.
var _ DriveAPI = (*DriveService)(nil)

// NewDriveService builds a Drive client from a refresh token. Missing
// credentials are a configuration error.
func NewDriveService(ctx context.Context, cfg DriveConfig, opts ...option.ClientOption) (*DriveService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("%w: client id, client secret and refresh token are required", ErrMissingCredentials))
	}
	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = "urn:ietf:wg:oauth:2.0:oob"
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirect,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveScope},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := drive.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
	if err != nil {
		return nil, errkind.Configuration.Wrap(fmt.Errorf("storage: create drive client: %w", err))
	}
	return newDriveService(svc, cfg.SharedDrives), nil
}

// newDriveService wraps an already constructed Drive client.
func newDriveService(svc *drive.Service, sharedDrives bool) *DriveService {
	return &DriveService{
		files:       svc.Files,
		permissions: svc.Permissions,
		allDrives:   sharedDrives,
		maxDownload: MaxDownloadSize,
	}
}

// CreateFile implements DriveAPI.
func (d *DriveService) CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*DriveFile, error) {
	meta := &drive.File{Name: name, MimeType: mimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := d.files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields("id, name, size, mimeType").
		SupportsAllDrives(d.allDrives).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapDriveError(err)
	}
	return toDriveFile(f), nil
}

// DownloadFile implements DriveAPI.
func (d *DriveService) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := d.files.Get(fileID).
		SupportsAllDrives(d.allDrives).
		Context(ctx).
		Download()
	if err != nil {
		return nil, mapDriveError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRemoteFailure, err)
	}
	if int64(len(data)) > d.maxDownload {
		return nil, fmt.Errorf("%w: file %s is larger than %d bytes", ErrRemoteFailure, fileID, d.maxDownload)
	}
	return data, nil
}

// DeleteFile implements DriveAPI.
func (d *DriveService) DeleteFile(ctx context.Context, fileID string) error {
	err := d.files.Delete(fileID).
		SupportsAllDrives(d.allDrives).
		Context(ctx).
		Do()
	return mapDriveError(err)
}

// GrantPublicRead implements DriveAPI. A 400 response means the permission
// already applies and is not treated as an error.
func (d *DriveService) GrantPublicRead(ctx context.Context, fileID string) error {
	_, err := d.permissions.Create(fileID, &drive.Permission{Role: "reader", Type: "anyone"}).
		Fields("id").
		SupportsAllDrives(d.allDrives).
		Context(ctx).
		Do()
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusBadRequest {
		return nil
	}
	return mapDriveError(err)
}

// FindFolder implements DriveAPI.
func (d *DriveService) FindFolder(ctx context.Context, name, parentID string) (*DriveFile, error) {
	q := []string{
		fmt.Sprintf("name='%s'", EscapeQueryValue(name)),
		fmt.Sprintf("mimeType='%s'", FolderMimeType),
		"trashed=false",
	}
	if parentID != "" {
		q = append(q, fmt.Sprintf("'%s' in parents", EscapeQueryValue(parentID)))
	}
	corpora := "user"
	if d.allDrives {
		corpora = "allDrives"
	}

	list, err := d.files.List().
		Q(strings.Join(q, " and ")).
		Fields("files(id, name)").
		SupportsAllDrives(d.allDrives).
		IncludeItemsFromAllDrives(d.allDrives).
		Corpora(corpora).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapDriveError(err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%w: folder %q", ErrNotFound, name)
	}
	return toDriveFile(list.Files[0]), nil
}

// CreateFolder implements DriveAPI.
func (d *DriveService) CreateFolder(ctx context.Context, name, parentID string) (*DriveFile, error) {
	meta := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := d.files.Create(meta).
		Fields("id, name").
		SupportsAllDrives(d.allDrives).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapDriveError(err)
	}
	return toDriveFile(f), nil
}

func toDriveFile(f *drive.File) *DriveFile {
	return &DriveFile{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Size: f.Size}
}

// mapDriveError converts Drive API errors into storage sentinels.
func mapDriveError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrPermissionDenied, gerr.Message)
		}
		return fmt.Errorf("%w: HTTP %d: %s", ErrRemoteFailure, gerr.Code, gerr.Message)
	}
	return fmt.Errorf("%w: %w", ErrRemoteFailure, err)
}
