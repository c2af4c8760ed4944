package didcore

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("simple did", func(tt *testing.T) {
		did, err := Parse("did:example:123abc")
		require.NoError(tt, err)
		assert.Equal(tt, "example", did.Method)
		assert.Equal(tt, "123abc", did.ID)
		assert.Equal(tt, "did:example:123abc", did.URI)
		assert.Empty(tt, did.Params)
		assert.Empty(tt, did.Path)
		assert.Empty(tt, did.Query)
		assert.Empty(tt, did.Fragment)
	})

	t.Run("multi segment did:web", func(tt *testing.T) {
		did, err := Parse("did:web:w3c-ccg.github.io:user:alice")
		require.NoError(tt, err)
		assert.Equal(tt, "web", did.Method)
		assert.Equal(tt, "w3c-ccg.github.io:user:alice", did.ID)
	})

	t.Run("percent encoded port", func(tt *testing.T) {
		did, err := Parse("did:web:localhost%3A8443")
		require.NoError(tt, err)
		assert.Equal(tt, "localhost%3A8443", did.ID)
	})

	t.Run("full did url", func(tt *testing.T) {
		input := "did:example:123/credentials/x?versionId=1&a=b#key-1"
		did, err := Parse(input)
		require.NoError(tt, err)
		assert.Equal(tt, "did:example:123", did.URI)
		assert.Equal(tt, input, did.URL)
		assert.Equal(tt, input, did.String())
		assert.Equal(tt, "/credentials/x", did.Path)
		assert.Equal(tt, "versionId=1&a=b", did.Query)
		assert.Equal(tt, "key-1", did.Fragment)
	})

	t.Run("params path query fragment", func(tt *testing.T) {
		did, err := Parse("did:example:123;service=agent;version-id=3/path/to/resource?q=1#frag")
		require.NoError(tt, err)
		assert.Equal(tt, []Param{{Name: "service", Value: "agent"}, {Name: "version-id", Value: "3"}}, did.Params)
		value, ok := did.Param("version-id")
		assert.True(tt, ok)
		assert.Equal(tt, "3", value)
		_, ok = did.Param("missing")
		assert.False(tt, ok)
		assert.Equal(tt, "/path/to/resource", did.Path)
		assert.Equal(tt, "q=1", did.Query)
		assert.Equal(tt, "frag", did.Fragment)
	})

	t.Run("fragment only", func(tt *testing.T) {
		did, err := Parse("did:jwk:abc#0")
		require.NoError(tt, err)
		assert.Equal(tt, "did:jwk:abc", did.URI)
		assert.Equal(tt, "0", did.Fragment)
		assert.Equal(tt, "did:jwk:abc#0", did.VerificationMethodID("0"))
		assert.Equal(tt, "did:jwk:abc#0", did.VerificationMethodID("#0"))
	})

	t.Run("invalid input", func(tt *testing.T) {
		for _, input := range []string{
			"invalid:uri",
			"",
			"did:",
			"did:example",
			"did:example:",
			"did:Example:123",
			"did:example:123:",
			"did:example:12 3",
			"did:example:%zz",
			"DID:example:123",
		} {
			_, err := Parse(input)
			assert.ErrorIs(tt, err, ErrInvalidURI, input)
		}
	})

	t.Run("must parse panics on invalid input", func(tt *testing.T) {
		assert.Panics(tt, func() { MustParse("invalid:uri") })
		assert.NotPanics(tt, func() { MustParse("did:example:123") })
	})
}

func TestDIDText(t *testing.T) {
	type holder struct {
		DID DID `json:"did"`
	}

	t.Run("round trips through json", func(tt *testing.T) {
		in := holder{DID: MustParse("did:example:123/path#key-1")}
		data, err := json.Marshal(in)
		require.NoError(tt, err)
		assert.JSONEq(tt, `{"did":"did:example:123/path#key-1"}`, string(data))

		var out holder
		require.NoError(tt, json.Unmarshal(data, &out))
		assert.Equal(tt, in.DID, out.DID)
	})

	t.Run("rejects invalid text", func(tt *testing.T) {
		var out holder
		assert.Error(tt, json.Unmarshal([]byte(`{"did":"invalid:uri"}`), &out))
	})

	t.Run("zero value", func(tt *testing.T) {
		assert.True(tt, DID{}.IsEmpty())
		assert.False(tt, MustParse("did:example:123").IsEmpty())
	})
}
