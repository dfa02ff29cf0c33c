package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemDrive is an in-memory DriveAPI for tests and offline runs.
// Hook fields, when set, run before the corresponding operation and may
// return an error to simulate provider failures.
type MemDrive struct {
	mu      sync.Mutex
	nextID  int
	files   map[string]*memFile
	public  map[string]bool
	folders int

	CreateFileHook   func(name, parentID string) error
	GrantPublicHook  func(fileID string) error
	CreateFolderHook func(name, parentID string) error
}

type memFile struct {
	DriveFile
	parentID string
	data     []byte
	folder   bool
}

// Compile-time interface check.
var _ DriveAPI = (*MemDrive)(nil)

// NewMemDrive creates an empty in-memory drive.
func NewMemDrive() *MemDrive {
	return &MemDrive{
		files:  make(map[string]*memFile),
		public: make(map[string]bool),
	}
}

func (m *MemDrive) newID() string {
	m.nextID++
	return fmt.Sprintf("mem-%06d", m.nextID)
}

// CreateFile implements DriveAPI.
func (m *MemDrive) CreateFile(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*DriveFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.CreateFileHook != nil {
		if err := m.CreateFileHook(name, parentID); err != nil {
			return nil, err
		}
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("%w: read content: %w", ErrRemoteFailure, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f := &memFile{
		DriveFile: DriveFile{ID: m.newID(), Name: name, MimeType: mimeType, Size: int64(len(data))},
		parentID:  parentID,
		data:      data,
	}
	m.files[f.ID] = f
	out := f.DriveFile
	return &out, nil
}

// DownloadFile implements DriveAPI.
func (m *MemDrive) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok || f.folder {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return append([]byte(nil), f.data...), nil
}

// DeleteFile implements DriveAPI.
func (m *MemDrive) DeleteFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[fileID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	delete(m.files, fileID)
	delete(m.public, fileID)
	return nil
}

// GrantPublicRead implements DriveAPI.
func (m *MemDrive) GrantPublicRead(ctx context.Context, fileID string) error {
	if m.GrantPublicHook != nil {
		if err := m.GrantPublicHook(fileID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[fileID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	m.public[fileID] = true
	return nil
}

// FindFolder implements DriveAPI.
func (m *MemDrive) FindFolder(ctx context.Context, name, parentID string) (*DriveFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.folder && f.Name == name && f.parentID == parentID {
			out := f.DriveFile
			return &out, nil
		}
	}
	return nil, fmt.Errorf("%w: folder %q", ErrNotFound, name)
}

// CreateFolder implements DriveAPI.
func (m *MemDrive) CreateFolder(ctx context.Context, name, parentID string) (*DriveFile, error) {
	if m.CreateFolderHook != nil {
		if err := m.CreateFolderHook(name, parentID); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &memFile{
		DriveFile: DriveFile{ID: m.newID(), Name: name, MimeType: FolderMimeType},
		parentID:  parentID,
		folder:    true,
	}
	m.files[f.ID] = f
	m.folders++
	out := f.DriveFile
	return &out, nil
}

// FolderCount returns how many folders have been created.
func (m *MemDrive) FolderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folders
}

// FileCount returns how many non-folder files exist.
func (m *MemDrive) FileCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.files {
		if !f.folder {
			n++
		}
	}
	return n
}

// IsPublic reports whether GrantPublicRead succeeded for fileID.
func (m *MemDrive) IsPublic(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.public[fileID]
}

// ParentOf returns the folder a file was created in.
func (m *MemDrive) ParentOf(fileID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[fileID]; ok {
		return f.parentID
	}
	return ""
}

// Corrupt flips one bit of a stored file's content.
func (m *MemDrive) Corrupt(fileID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[fileID]; ok && len(f.data) > 0 {
		f.data[0] ^= 0x01
	}
}
