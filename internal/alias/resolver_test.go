package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PersistedBeatsBuiltin(t *testing.T) {
	r := NewResolver([]Entry{
		{Alias: "GOP", Key: "grand_old_party", Title: "Grand Old Party"},
		{Alias: "clickbait", Key: Skip},
	})

	key, title, ok := r.Resolve("gop")
	require.True(t, ok)
	assert.Equal(t, "grand_old_party", key, "persisted table wins over builtin")
	assert.Equal(t, "Grand Old Party", title)

	_, _, ok = r.Resolve("Clickbait")
	assert.False(t, ok, "persisted skip rule drops the topic")
}

func TestResolve_BuiltinFallback(t *testing.T) {
	r := NewResolver(nil)

	key, title, ok := r.Resolve("SCOTUS")
	require.True(t, ok)
	assert.Equal(t, "supreme_court", key)
	assert.Equal(t, "Supreme Court", title)

	_, _, ok = r.Resolve("Breaking News")
	assert.False(t, ok, "builtin skip entries drop noise topics")
}

func TestResolve_DefaultNormalization(t *testing.T) {
	r := NewResolver(nil)

	key, title, ok := r.Resolve("  Patel Confirmed, FBI Director! ")
	require.True(t, ok)
	assert.Equal(t, "patel_confirmed_fbi_director", key)
	assert.Equal(t, "Patel Confirmed Fbi Director", title)
}

func TestResolve_DropsShortKeys(t *testing.T) {
	r := NewResolver(nil)

	_, _, ok := r.Resolve("a")
	assert.False(t, ok)
	_, _, ok = r.Resolve("?!")
	assert.False(t, ok)
	_, _, ok = r.Resolve("ai")
	assert.True(t, ok, "two characters is the minimum")
}

func TestCanonicalKey_Idempotent(t *testing.T) {
	inputs := []string{
		"Kash Patel",
		"senate-rejects-bill",
		"U.S. Economy",
		"patel_confirmed_fbi_director",
	}
	for _, in := range inputs {
		key := CanonicalKey(in)
		assert.Equal(t, key, CanonicalKey(CanonicalTitle(in)), "key of title must round-trip for %q", in)
	}
}

func TestIsProtectedAcronym(t *testing.T) {
	r := NewResolver(nil)
	assert.True(t, r.IsProtectedAcronym("FBI"))
	assert.True(t, r.IsProtectedAcronym("nato"))
	assert.False(t, r.IsProtectedAcronym("congress"))
}
