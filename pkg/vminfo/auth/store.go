package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/telekom/azure-vminfo/pkg/utils"
)

const (
	StorageFile     = "file"
	StorageKeychain = "keychain"

	keyringService = "vminfo"
	keyringUser    = "token"
)

// TokenStore persists at most one token record.
type TokenStore interface {
	// Load returns the record and true, or false when none is stored. A record
	// that cannot be decoded is reported with ErrStoreCorrupt.
	Load(ctx context.Context) (Record, bool, error)
	Save(ctx context.Context, rec Record) error
	// Clear removes the record and succeeds when there is none.
	Clear(ctx context.Context) error
}

// NewTokenStore returns the store selected by mode. path is used by the file store.
func NewTokenStore(mode, path string) (TokenStore, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", StorageFile:
		if path == "" {
			return nil, errors.New("token file path is required")
		}
		return &FileTokenStore{Path: path}, nil
	case StorageKeychain, "keyring":
		return &KeyringTokenStore{Service: keyringService, User: keyringUser}, nil
	default:
		return nil, fmt.Errorf("unsupported token storage: %s", mode)
	}
}

// FileTokenStore keeps the record as JSON in a 0600 file replaced atomically.
type FileTokenStore struct {
	Path string
}

func (s *FileTokenStore) Load(_ context.Context) (Record, bool, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	return decodeRecord(content)
}

func (s *FileTokenStore) Save(_ context.Context, rec Record) error {
	content, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	if err := utils.WriteFileAtomic(s.Path, content, 0o600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Clear(_ context.Context) error {
	if err := utils.RemoveIfExists(s.Path); err != nil {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// KeyringTokenStore keeps the record JSON in the OS keychain.
type KeyringTokenStore struct {
	Service string
	User    string
}

func (s *KeyringTokenStore) Load(_ context.Context) (Record, bool, error) {
	secret, err := keyring.Get(s.Service, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	return decodeRecord([]byte(secret))
}

func (s *KeyringTokenStore) Save(_ context.Context, rec Record) error {
	content, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	if err := keyring.Set(s.Service, s.User, string(content)); err != nil {
		return fmt.Errorf("failed to save token to keychain: %w", err)
	}
	return nil
}

func (s *KeyringTokenStore) Clear(_ context.Context) error {
	if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove token from keychain: %w", err)
	}
	return nil
}

func decodeRecord(content []byte) (Record, bool, error) {
	var rec Record
	if err := json.Unmarshal(content, &rec); err != nil {
		return Record{}, false, fmt.Errorf("%w: %w", ErrStoreCorrupt, err)
	}
	if rec.Token.AccessToken == "" {
		return Record{}, false, fmt.Errorf("%w: record has no access token", ErrStoreCorrupt)
	}
	return rec, true, nil
}
