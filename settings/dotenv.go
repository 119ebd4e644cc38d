package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// envNames maps setting keys to the variable names used in the dotenv file.
var envNames = map[string]string{
	KeyAPIKey:    "OPENAI_API_KEY",
	KeyLanguage:  "ISO_639_1_LANGUAGE_CODE",
	KeyListening: "TRANSCRIBER_LISTENING",
}

// DotenvStore keeps settings in a dotenv file. The file is created when missing.
type DotenvStore struct {
	path string
	mu   sync.Mutex
}

// NewDotenvStore returns a store backed by the file at path, creating it if needed.
func NewDotenvStore(path string) (*DotenvStore, error) {
	if path == "" {
		return nil, errors.New("dotenv path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("could not create settings directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not open settings file %s: %w", path, err)
	}
	_ = f.Close()
	return &DotenvStore{path: path}, nil
}

func envName(key string) string {
	if name, ok := envNames[key]; ok {
		return name
	}
	return strings.ToUpper(key)
}

func (s *DotenvStore) read() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("could not read settings file %s: %w", s.path, err)
	}
	return values, nil
}

func (s *DotenvStore) write(values map[string]string) error {
	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("could not write settings file %s: %w", s.path, err)
	}
	return nil
}

func (s *DotenvStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return "", false, err
	}
	value, ok := values[envName(key)]
	return value, ok, nil
}

func (s *DotenvStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	values[envName(key)] = value
	return s.write(values)
}

func (s *DotenvStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return err
	}
	name := envName(key)
	if _, ok := values[name]; !ok {
		return nil
	}
	delete(values, name)
	return s.write(values)
}

func (s *DotenvStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *DotenvStore) Close() error { return nil }

// Keys lists the variables in the file.
func (s *DotenvStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
