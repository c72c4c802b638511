// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/seo-relay/pkg/types"
)

// Environment variables holding the credential pair.
const (
	EnvUsername = "DATAFORSEO_USERNAME"
	EnvPassword = "DATAFORSEO_PASSWORD"
)

// ErrMissingCredentials is returned when no source yields both values.
var ErrMissingCredentials = errors.New("DataForSEO username and password are required in the config or as environment variables (" + EnvUsername + ", " + EnvPassword + ")")

// Sources lists every place a credential may come from, highest precedence first.
type Sources struct {
	// Inline is a JSON object {"username":..,"password":..}.
	Inline string

	// File is a path to a YAML or JSON file with the same two keys.
	File string

	// EnvUsername and EnvPassword are the environment values.
	EnvUsername string
	EnvPassword string

	// Dir holds key files loaded by Load.
	Dir Set
}

// Resolve picks each credential half from the first source that sets it.
// Inline and file sources that are given but unparsable are errors; a pair
// still incomplete after every source yields ErrMissingCredentials.
func Resolve(src Sources) (types.Credentials, error) {
	var layers []types.Credentials

	if src.Inline != "" {
		var c types.Credentials
		if err := json.Unmarshal([]byte(src.Inline), &c); err != nil {
			return types.Credentials{}, fmt.Errorf("parsing inline credentials: %w", err)
		}
		layers = append(layers, c)
	}

	if src.File != "" {
		c, err := readFile(src.File)
		if err != nil {
			return types.Credentials{}, err
		}
		layers = append(layers, c)
	}

	layers = append(layers,
		types.Credentials{Username: src.EnvUsername, Password: src.EnvPassword},
		src.Dir.Credentials(),
	)

	var out types.Credentials
	for _, l := range layers {
		if out.Username == "" {
			out.Username = l.Username
		}
		if out.Password == "" {
			out.Password = l.Password
		}
	}

	if !out.Complete() {
		return out, ErrMissingCredentials
	}
	return out, nil
}

// readFile parses a credentials file. YAML is a superset of JSON so both
// formats decode through the YAML parser.
func readFile(path string) (types.Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}
	var c types.Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return types.Credentials{}, fmt.Errorf("parsing credentials file %s: %w", path, err)
	}
	return c, nil
}
