package pagination

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	t.Parallel()
	items := []int{1, 2, 3, 4, 5, 6, 7}

	ps := Chunk(items, 3)
	require.Len(t, ps, 3)

	last, err := ps[2](context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{7}, last)

	first, err := ps[0](context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, first)

	assert.Empty(t, Chunk([]int{}, 3))
	assert.Len(t, Chunk(items, 0), 7)
}

func TestStatic(t *testing.T) {
	t.Parallel()
	ps := Static("a", "b")
	require.Len(t, ps, 2)
	v, err := ps[1](context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestContentReply(t *testing.T) {
	t.Parallel()
	select1 := discordgo.ActionsRow{Components: []discordgo.MessageComponent{discordgo.SelectMenu{CustomID: "anime.info.0"}}}

	r, err := Content{Content: "x", Components: []discordgo.MessageComponent{select1}}.reply("k", 1, 3)
	require.NoError(t, err)
	require.Len(t, r.Components, 2)
	assert.False(t, isNavigationRow(r.Components[0]))
	assert.True(t, isNavigationRow(r.Components[1]))

	full := make([]discordgo.MessageComponent, 5)
	for i := range full {
		full[i] = select1
	}
	_, err = Content{Components: full}.reply("k", 0, 2)
	assert.Error(t, err)

	r, err = Content{Components: full}.reply("k", 0, 1)
	require.NoError(t, err)
	assert.Len(t, r.Components, 5)
}

func TestNavigationRowAtEnd(t *testing.T) {
	t.Parallel()
	row, err := navigationRow("k", 2, 3)
	require.NoError(t, err)

	next := row.Components[3].(discordgo.Button)
	last := row.Components[4].(discordgo.Button)
	prev := row.Components[1].(discordgo.Button)
	assert.True(t, next.Disabled)
	assert.True(t, last.Disabled)
	assert.False(t, prev.Disabled)
	assert.Equal(t, "3 / 3", row.Components[2].(discordgo.Button).Label)
}
