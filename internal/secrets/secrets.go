// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider credentials. Credentials may come from an
// inline JSON argument, a credentials file, environment variables, or a
// directory of plain-text key files where the filename is the key name and
// the trimmed contents are the value.
//
// Recognised key files: dataforseo-username, dataforseo-password and
// redis-password. Anything else in the directory is ignored.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/seo-relay/pkg/types"
)

// Key file names in the secrets directory.
const (
	UsernameKey      = "dataforseo-username"
	PasswordKey      = "dataforseo-password"
	RedisPasswordKey = "redis-password"
)

// knownKeys is the order keys are probed and reported in.
var knownKeys = []string{UsernameKey, PasswordKey, RedisPasswordKey}

// Set holds the recognised values found in a secrets directory.
type Set map[string]string

// Credentials returns the DataForSEO pair held by the set. Either half may
// be empty.
func (s Set) Credentials() types.Credentials {
	return types.Credentials{Username: s[UsernameKey], Password: s[PasswordKey]}
}

// Found lists the recognised keys present, in a fixed order.
func (s Set) Found() []string {
	var keys []string
	for _, k := range knownKeys {
		if s[k] != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Load reads the recognised key files in dir. A missing directory is an
// empty set. A key file that cannot be read is logged and skipped, and so
// is a directory holding only one half of the DataForSEO pair.
func Load(dir string, log *zap.SugaredLogger) (Set, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path %s is not a directory", dir)
	}

	set := Set{}
	for _, key := range knownKeys {
		data, err := os.ReadFile(filepath.Join(dir, key))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			continue
		case err != nil:
			log.Warnw("skipping unreadable secret", "key", key, "error", err)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			set[key] = v
		}
	}

	if creds := set.Credentials(); creds.Username != "" && creds.Password == "" {
		log.Warnw("secrets directory has a DataForSEO username but no password", "dir", dir, "missing", PasswordKey)
	} else if creds.Password != "" && creds.Username == "" {
		log.Warnw("secrets directory has a DataForSEO password but no username", "dir", dir, "missing", UsernameKey)
	}
	if found := set.Found(); len(found) > 0 {
		log.Debugw("loaded secrets", "dir", dir, "keys", found)
	}
	return set, nil
}
