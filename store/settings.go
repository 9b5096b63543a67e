package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("update definition not found")
)

// Identifiers of the stock update definitions. WeatherID is special:
// its settings carry the city consumed by the weather collaborator.
const (
	WeatherID = "wu"
	QuotesID  = "dq"
	FactsID   = "nf"
)

// UpdateDefinition mirrors one entry of the updates.json file.
type UpdateDefinition struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Settings map[string]string `json:"settings"`
}

// Time returns the definition's trigger time as HH:MM:SS.
func (d UpdateDefinition) Time() string {
	return d.Settings["time"]
}

// Settings holds the ordered list of update definitions backed by a
// JSON file. Every mutation rewrites the whole file and is persisted
// with an atomic replace, so a concurrent reader never observes a
// half-written document.
type Settings struct {
	path string

	mu    sync.RWMutex
	defs  []UpdateDefinition
	index map[string]UpdateDefinition
}

// OpenSettings reads the definitions from path and builds the id index.
func OpenSettings(path string) (*Settings, error) {
	s := &Settings{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return errors.Wrap(err, "unable to read settings file")
	}
	var defs []UpdateDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return errors.Wrap(err, "unable to unmarshall settings file")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = defs
	s.reindex()
	return nil
}

func (s *Settings) reindex() {
	index := make(map[string]UpdateDefinition, len(s.defs))
	for _, def := range s.defs {
		index[def.ID] = def
	}
	s.index = index
}

// All returns the definitions in file order.
func (s *Settings) All() []UpdateDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	defs := make([]UpdateDefinition, len(s.defs))
	copy(defs, s.defs)
	return defs
}

// Get returns the definition with the given id.
func (s *Settings) Get(id string) (UpdateDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.index[id]
	if !ok {
		return UpdateDefinition{}, ErrNotFound
	}
	return def, nil
}

// City returns the lower-cased city configured for the weather update.
func (s *Settings) City() string {
	def, err := s.Get(WeatherID)
	if err != nil {
		return ""
	}
	return strings.ToLower(def.Settings["city"])
}

// SetTime changes the trigger time of the definition with the given id
// and rewrites the settings file.
func (s *Settings) SetTime(id, time string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for i, def := range s.defs {
		if def.ID == id {
			s.defs[i].Settings["time"] = time
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	if err := s.persist(); err != nil {
		return err
	}
	s.reindex()
	return nil
}

func (s *Settings) persist() error {
	raw, err := json.MarshalIndent(s.defs, "", "    ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal settings")
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "updates-*.json")
	if err != nil {
		return errors.Wrap(err, "unable to create temporary settings file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to write settings")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to close temporary settings file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to replace settings file")
	}
	return nil
}
