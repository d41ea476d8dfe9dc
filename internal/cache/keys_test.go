package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildKey(t *testing.T) {
	t.Run("parts only", func(t *testing.T) {
		assert.Equal(t, "chat:response", BuildKey(nil, "chat", "response"))
	})

	t.Run("params sorted by name", func(t *testing.T) {
		key := BuildKey(map[string]interface{}{
			"user":  42,
			"model": "gpt",
		}, "chat", "response")
		assert.Equal(t, "chat:response:model=gpt:user=42", key)
	})

	t.Run("deterministic across construction order", func(t *testing.T) {
		a := BuildKey(map[string]interface{}{"a": 1, "b": 2, "c": 3}, "p")
		b := BuildKey(map[string]interface{}{"c": 3, "b": 2, "a": 1}, "p")
		assert.Equal(t, a, b)
	})

	t.Run("params only", func(t *testing.T) {
		assert.Equal(t, "x=1", BuildKey(map[string]interface{}{"x": 1}))
	})
}

func TestArtifactKey(t *testing.T) {
	t.Run("stable across config order", func(t *testing.T) {
		a := ArtifactKey("openai", "completion", map[string]interface{}{
			"model":       "gpt-4",
			"temperature": 0.2,
		})
		b := ArtifactKey("openai", "completion", map[string]interface{}{
			"temperature": 0.2,
			"model":       "gpt-4",
		})
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("distinct inputs produce distinct keys", func(t *testing.T) {
		a := ArtifactKey("openai", "completion", map[string]interface{}{"model": "gpt-4"})
		b := ArtifactKey("openai", "completion", map[string]interface{}{"model": "gpt-3.5"})
		c := ArtifactKey("anthropic", "completion", map[string]interface{}{"model": "gpt-4"})
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})

	t.Run("valid cache key", func(t *testing.T) {
		key := ArtifactKey("p", "k", map[string]interface{}{"with space": "still hashed"})
		assert.True(t, ValidKey(key))
	})
}
