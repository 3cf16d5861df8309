package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfmate/shelfmate-server/internal/domain"
	"github.com/shelfmate/shelfmate-server/internal/metadata/googlebooks"
	"github.com/shelfmate/shelfmate-server/internal/normalize"
	"github.com/shelfmate/shelfmate-server/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeSearcher returns canned volumes keyed by normalized title.
type fakeSearcher struct {
	mu      sync.Mutex
	volumes map[string][]googlebooks.Volume
	errs    map[string]error
	calls   int
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{
		volumes: make(map[string][]googlebooks.Volume),
		errs:    make(map[string]error),
	}
}

func (f *fakeSearcher) add(v googlebooks.Volume) {
	key := normalize.Key(v.Title)
	f.volumes[key] = append(f.volumes[key], v)
}

func (f *fakeSearcher) fail(title string, err error) {
	f.errs[normalize.Key(title)] = err
}

func (f *fakeSearcher) SearchByTitle(_ context.Context, title string) ([]googlebooks.Volume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	key := normalize.Key(title)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.volumes[key], nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeGenerator returns a fixed response and records prompts.
type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) lastPrompt() string {
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func candidate(title, isbn13 string, authors ...string) *domain.CatalogBook {
	return &domain.CatalogBook{
		Title:   title,
		ISBN13:  isbn13,
		Authors: authors,
	}
}

func synopsisOf(n int) string {
	return strings.Repeat("a", n)
}
