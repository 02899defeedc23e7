package candidates

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasStore loads partner alias spellings from a yaml file of the shape:
//
//	"ABC d.o.o.":
//	  - "ABC doo Ljubljana"
//	  - "ABC"
//
// Bank counterpart fields rarely carry the registered partner name
// verbatim; curated aliases close that gap without loosening the fuzzy
// threshold.
type AliasStore struct {
	File string
}

// NewAliasStore creates a store for the given file path. An empty path is
// valid and loads no aliases.
func NewAliasStore(file string) *AliasStore {
	return &AliasStore{File: file}
}

// Load reads the alias map. A missing file is not an error; a malformed
// one is.
func (s *AliasStore) Load() (map[string][]string, error) {
	if s.File == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.File)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("file", s.File).Debug("No alias file found")
			return nil, nil
		}
		return nil, fmt.Errorf("reading alias file %s: %w", s.File, err)
	}

	aliases := make(map[string][]string)
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parsing alias file %s: %w", s.File, err)
	}

	log.WithFields(map[string]interface{}{
		"file":     s.File,
		"partners": len(aliases),
	}).Debug("Loaded partner aliases")
	return aliases, nil
}

// Save writes the alias map back, creating the file if needed.
func (s *AliasStore) Save(aliases map[string][]string) error {
	if s.File == "" {
		return fmt.Errorf("no alias file configured")
	}
	data, err := yaml.Marshal(aliases)
	if err != nil {
		return fmt.Errorf("marshaling aliases: %w", err)
	}
	return os.WriteFile(s.File, data, 0o644)
}
