package selection

import (
	"context"
	"testing"

	"github.com/MarcoPoloResearchLab/sortie/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionPerChannel(t *testing.T) {
	ctx := context.Background()
	service, err := NewService(ServiceConfig{Store: store.NewMemoryStore()})
	require.NoError(t, err)

	here := Key{ChannelID: "c1", UserID: "u1"}
	there := Key{ChannelID: "c2", UserID: "u1"}

	empty, err := service.Get(ctx, here)
	require.NoError(t, err)
	assert.Equal(t, Record{}, empty)

	require.NoError(t, service.SetCharacter(ctx, here, "char-1"))
	require.NoError(t, service.SetMech(ctx, here, "mech-1"))
	require.NoError(t, service.SetMech(ctx, there, "mech-2"))

	record, err := service.Get(ctx, here)
	require.NoError(t, err)
	assert.Equal(t, Record{CharacterID: "char-1", MechID: "mech-1"}, record)

	record, err = service.Get(ctx, there)
	require.NoError(t, err)
	assert.Equal(t, Record{MechID: "mech-2"}, record)
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("123:456")
	require.NoError(t, err)
	assert.Equal(t, Key{ChannelID: "123", UserID: "456"}, key)
	assert.Equal(t, "123:456", key.String())

	_, err = ParseKey("nocolon")
	require.Error(t, err)
}
