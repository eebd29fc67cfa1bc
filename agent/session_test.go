package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data    map[string][]byte
	cleared int
}

func (m *memStore) SaveSession(key string, messages any, _ int, cleared bool) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	m.data[key] = data
	if cleared {
		m.cleared++
	}
	return nil
}

func (m *memStore) LoadSession(key string) (json.RawMessage, bool, error) {
	data, ok := m.data[key]
	return data, ok, nil
}

func (m *memStore) DeleteSession(key string) error {
	delete(m.data, key)
	return nil
}

func TestSessionManagerPersists(t *testing.T) {
	store := &memStore{data: map[string][]byte{}}
	sm := NewSessionManager(store, nil)

	s, err := sm.Open("main")
	require.NoError(t, err)
	assert.Empty(t, s.Messages)

	transcript := []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}
	require.NoError(t, sm.Update("main", transcript))
	transcript[2].Content = "mutated"

	history, err := sm.History("main")
	require.NoError(t, err)
	assert.Equal(t, "hello", history[2].Content)

	// a fresh manager resumes from the store
	resumed, err := NewSessionManager(store, nil).Open("main")
	require.NoError(t, err)
	assert.Len(t, resumed.Messages, 3)

	require.NoError(t, sm.Clear("main"))
	history, err = sm.History("main")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, 1, store.cleared)
	assert.JSONEq(t, "[]", string(store.data["main"]))

	require.NoError(t, sm.Remove("main"))
	_, err = sm.History("main")
	assert.Error(t, err)
	assert.NotContains(t, store.data, "main")
}

func TestSessionManagerWithoutStore(t *testing.T) {
	sm := NewSessionManager(nil, nil)
	_, err := sm.Open("tmp")
	require.NoError(t, err)
	require.NoError(t, sm.Update("tmp", []Message{{Role: RoleUser, Content: "x"}}))
	assert.Error(t, sm.Update("other", nil))
}

func TestSessionManagerRejectsCorruptHistory(t *testing.T) {
	store := &memStore{data: map[string][]byte{"bad": []byte(`{"not":"a list"}`)}}
	_, err := NewSessionManager(store, nil).Open("bad")
	assert.Error(t, err)
}
