package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessages(chat string, texts ...string) []Message {
	msgs := make([]Message, 0, len(texts))
	for i, text := range texts {
		m := Message{
			Chat:      chat,
			Type:      TypeText,
			Direction: DirectionIn,
			Date:      "19/03/2024",
			Time:      "10:0" + string(rune('0'+i)),
			Text:      text,
		}
		m.DateTime = m.Date + " " + m.Time
		m.ID = computeID(m)
		msgs = append(msgs, m)
	}
	return msgs
}

// storeContract runs the behaviour every HistoryStore must share.
func storeContract(t *testing.T, open func(t *testing.T) HistoryStore) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		s := open(t)
		msgs, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, msgs)

		last, err := s.Last(ctx, "Mario")
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("append dedups by id", func(t *testing.T) {
		s := open(t)
		first := sampleMessages("Mario", "a", "b")

		n, err := s.Append(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		more := append(sampleMessages("Mario", "a", "b"), sampleMessages("Anna", "x")...)
		n, err = s.Append(ctx, more)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		all, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "x"}, texts(all))
	})

	t.Run("last per chat", func(t *testing.T) {
		s := open(t)
		_, err := s.Append(ctx, sampleMessages("Mario", "a", "b"))
		require.NoError(t, err)
		_, err = s.Append(ctx, sampleMessages("Anna", "x"))
		require.NoError(t, err)

		last, err := s.Last(ctx, "Mario")
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, "b", last.Text)

		last, err = s.Last(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, "x", last.Text)

		last, err = s.Last(ctx, "Nobody")
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("missing id is computed", func(t *testing.T) {
		s := open(t)
		m := sampleMessages("Mario", "a")[0]
		want := m.ID
		m.ID = ""

		n, err := s.Append(ctx, []Message{m})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		all, err := s.Load(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, want, all[0].ID)
	})
}

func TestJSONStore(t *testing.T) {
	storeContract(t, func(t *testing.T) HistoryStore {
		return NewJSONStore(filepath.Join(t.TempDir(), "messages.json"))
	})
}

func TestJSONStore_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "messages.json")
	s := NewJSONStore(path)

	_, err := s.Append(context.Background(), sampleMessages("Mario", "è <ok>"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    {")
	assert.Contains(t, string(data), `"message_dir": "In"`)
	assert.Contains(t, string(data), `"text": "è <ok>"`)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestJSONStore_EmptyAndCorruptFiles(t *testing.T) {
	dir := t.TempDir()

	empty := writeFile(t, dir, "empty.json", "  \n")
	msgs, err := NewJSONStore(empty).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msgs)

	corrupt := writeFile(t, dir, "corrupt.json", "{not json")
	_, err = NewJSONStore(corrupt).Load(context.Background())
	assert.Error(t, err)

	_, err = NewJSONStore(corrupt).Append(context.Background(), sampleMessages("Mario", "a"))
	assert.Error(t, err, "a corrupt file must not be overwritten")
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Harvest.MessagesFile = filepath.Join(dir, "m.json")
	cfg.Storage.SQLitePath = filepath.Join(dir, "m.db")

	s, err := OpenStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)
	require.NoError(t, s.Close())

	cfg.Storage.Backend = "sqlite"
	s, err = OpenStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	cfg.Storage.Backend = "mongo"
	_, err = OpenStore(cfg)
	assert.Error(t, err)
}
