package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/punchamoorthee/shelfledger/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Put_WritesFile(t *testing.T) {
	// arrange
	root := filepath.Join(t.TempDir(), "exports")
	s, err := New(root)
	require.NoError(t, err)

	// act
	err = s.Put(context.Background(), "daily/ledger.json", strings.NewReader(`{"ok":true}`), "application/json")

	// assert
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(root, "daily", "ledger.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
	assert.Equal(t, filepath.Join(root, "daily", "ledger.json"), s.Location("daily/ledger.json"))
}

func Test_Put_NeverOverwrites(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a.json", strings.NewReader("1"), ""))
	err = s.Put(ctx, "a.json", strings.NewReader("2"), "")

	assert.ErrorIs(t, err, blob.ErrExists)
}

func Test_Put_RejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	err = s.Put(context.Background(), "../outside.json", strings.NewReader("x"), "")

	assert.ErrorContains(t, err, "escapes root")
}

func Test_New_RequiresRoot(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)
}
