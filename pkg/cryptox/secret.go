package cryptox

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrGenerateSecret reads a base64url encoded secret from path. When the file
// does not exist a new secret of size bytes is generated and written with 0600
// permissions, so restarts keep hashing with the same key.
func LoadOrGenerateSecret(path string, size int) ([]byte, error) {
	if size < MinSecretBytes {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrConfiguration, MinSecretBytes)
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create secret dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		encoded, err := GenerateToken(size)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
			return nil, fmt.Errorf("write secret: %w", err)
		}
		data = []byte(encoded)
	} else if err != nil {
		return nil, fmt.Errorf("read secret: %w", err)
	}

	secret, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: secret file is not base64url: %v", ErrConfiguration, err)
	}
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: secret file holds %d bytes, want at least %d", ErrConfiguration, len(secret), MinSecretBytes)
	}
	return secret, nil
}
