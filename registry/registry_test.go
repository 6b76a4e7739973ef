package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "register valid item", key: "item-1", wantErr: false},
		{name: "register item with empty name", key: "", wantErr: true},
		{name: "register duplicate item", key: "item-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, testItem{ID: tt.key})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseRegistry_Replace(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	require.NoError(t, reg.Register("a", testItem{ID: "a", Name: "first"}))
	require.NoError(t, reg.Replace("a", testItem{ID: "a", Name: "second"}))

	item, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "second", item.Name)
}

func TestBaseRegistry_Names(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	require.NoError(t, reg.Register("charlie", testItem{}))
	require.NoError(t, reg.Register("alpha", testItem{}))
	require.NoError(t, reg.Register("bravo", testItem{}))

	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, reg.Names())
}

func TestBaseRegistry_RemoveAndCount(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	require.NoError(t, reg.Register("a", testItem{}))
	require.NoError(t, reg.Register("b", testItem{}))
	assert.Equal(t, 2, reg.Count())

	require.NoError(t, reg.Remove("a"))
	assert.Equal(t, 1, reg.Count())

	assert.Error(t, reg.Remove("a"))

	reg.Clear()
	assert.Equal(t, 0, reg.Count())
}
