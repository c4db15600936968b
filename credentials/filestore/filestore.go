// Package filestore persists credentials in a single file, sealed with
// NaCl secretbox when a passphrase is configured.
package filestore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	fileName  = "credentials.json"
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	// sealed files start with this marker so plain files can still be read
	// after a passphrase is introduced
	magic = "JPC1"
)

var ErrDecrypt = errors.New("credentials file could not be decrypted")

var _ credentials.Store = (*FileStore)(nil)

type document struct {
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         *users.User `json:"user,omitempty"`
}

type FileStore struct {
	path       string
	passphrase []byte
	lock       sync.Mutex

	// last derived key and its salt; scrypt is too slow to run per read
	salt        []byte
	key         *[keySize]byte
	derivations int
}

// New returns a store writing to <folder>/credentials.json. An empty
// passphrase stores the file unsealed.
func New(folder, passphrase string) (*FileStore, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] MkdirAll")
	}
	if passphrase == "" {
		log.Warn().Str("folder", folder).Msg("credential file is not encrypted, set CREDENTIAL_KEY")
	}
	return &FileStore{
		path:       filepath.Join(folder, fileName),
		passphrase: []byte(passphrase),
	}, nil
}

func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) GetAccessToken(_ context.Context) (string, error) {
	doc, err := fs.read()
	return doc.AccessToken, err
}

func (fs *FileStore) SetAccessToken(_ context.Context, token string) error {
	return fs.update(func(d *document) { d.AccessToken = token })
}

func (fs *FileStore) GetRefreshToken(_ context.Context) (string, error) {
	doc, err := fs.read()
	return doc.RefreshToken, err
}

func (fs *FileStore) SetRefreshToken(_ context.Context, token string) error {
	return fs.update(func(d *document) { d.RefreshToken = token })
}

func (fs *FileStore) GetUser(_ context.Context) (*users.User, error) {
	doc, err := fs.read()
	return doc.User, err
}

func (fs *FileStore) SetUser(_ context.Context, user *users.User) error {
	return fs.update(func(d *document) { d.User = user.Clone() })
}

func (fs *FileStore) ClearAll(_ context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.ClearAll] Remove")
	}
	return nil
}

func (fs *FileStore) read() (document, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	return fs.load()
}

func (fs *FileStore) update(mutate func(*document)) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	doc, err := fs.load()
	if err != nil {
		return err
	}
	mutate(&doc)
	return fs.store(doc)
}

func (fs *FileStore) load() (document, error) {
	var doc document
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, errors.Wrap(err, "[FileStore.load] ReadFile")
	}

	if len(data) >= len(magic) && string(data[:len(magic)]) == magic {
		if data, err = fs.open(data[len(magic):]); err != nil {
			return doc, err
		}
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, errors.Wrap(err, "[FileStore.load] Unmarshal")
	}
	return doc, nil
}

func (fs *FileStore) store(doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "[FileStore.store] Marshal")
	}
	if len(fs.passphrase) > 0 {
		sealed, err := fs.seal(data)
		if err != nil {
			return err
		}
		data = append([]byte(magic), sealed...)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.store] WriteFile")
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrap(err, "[FileStore.store] Rename")
	}
	return nil
}

// seal output layout: salt | nonce | secretbox(data)
// The salt of the cached key is reused; every seal gets a fresh nonce.
func (fs *FileStore) seal(data []byte) ([]byte, error) {
	salt := fs.salt
	if fs.key == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, errors.Wrap(err, "[FileStore.seal] salt")
		}
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "[FileStore.seal] nonce")
	}
	key, err := fs.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, saltSize+nonceSize+len(data)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, data, &nonce, key), nil
}

func (fs *FileStore) open(sealed []byte) ([]byte, error) {
	if len(fs.passphrase) == 0 || len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])
	key, err := fs.deriveKey(sealed[:saltSize])
	if err != nil {
		return nil, err
	}
	data, ok := secretbox.Open(nil, sealed[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return data, nil
}

// deriveKey must be called with fs.lock held.
func (fs *FileStore) deriveKey(salt []byte) (*[keySize]byte, error) {
	if fs.key != nil && bytes.Equal(fs.salt, salt) {
		return fs.key, nil
	}
	derived, err := scrypt.Key(fs.passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.deriveKey] scrypt")
	}
	var key [keySize]byte
	copy(key[:], derived)
	fs.salt = append([]byte(nil), salt...)
	fs.key = &key
	fs.derivations++
	return &key, nil
}
