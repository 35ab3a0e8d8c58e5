package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	t.Run("two messages with features", func(t *testing.T) {
		messages := BuildPrompt("  Preciso de ajuda com acesso ao sistema \n", Features{
			Tokens:     []string{"preciso", "ajuda", "acesso", "sistema"},
			KeyPhrases: []string{"acesso ao sistema", "preciso de ajuda"},
		})
		require.Len(t, messages, 2)
		assert.Equal(t, RoleSystem, messages[0].Role)
		assert.Equal(t, RoleUser, messages[1].Role)

		for _, field := range NewClassificationSchema().Required() {
			assert.Contains(t, messages[0].Content, field)
		}
		assert.Contains(t, messages[0].Content, "Produtivo")
		assert.Contains(t, messages[0].Content, "Improdutivo")

		expected := "Email:\n\"\"\"\nPreciso de ajuda com acesso ao sistema\n\"\"\"\n\n" +
			"Tokens limpos: preciso, ajuda, acesso, sistema\n" +
			"Frases-chave: acesso ao sistema; preciso de ajuda\n" +
			"Retorne somente o JSON. Nada além do JSON."
		assert.Equal(t, expected, messages[1].Content)
	})

	t.Run("placeholders when features are empty", func(t *testing.T) {
		messages := BuildPrompt("Oi", Features{})
		assert.Contains(t, messages[1].Content, "Tokens limpos: nenhum\n")
		assert.Contains(t, messages[1].Content, "Frases-chave: nenhuma\n")
	})

	t.Run("caps tokens at 25", func(t *testing.T) {
		tokens := make([]string, 40)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("tok%02d", i)
		}
		messages := BuildPrompt("texto", Features{Tokens: tokens})
		assert.Contains(t, messages[1].Content, "tok24")
		assert.NotContains(t, messages[1].Content, "tok25")
		line := strings.Split(messages[1].Content, "\n")[5]
		assert.Len(t, strings.Split(strings.TrimPrefix(line, "Tokens limpos: "), ", "), 25)
	})

	t.Run("deterministic", func(t *testing.T) {
		features := Features{Tokens: []string{"a"}, KeyPhrases: []string{"b c"}}
		assert.Equal(t, BuildPrompt("x", features), BuildPrompt("x", features))
	})
}

func TestClassificationSchema_MarshalJSON(t *testing.T) {
	raw, err := NewClassificationSchema().MarshalJSON()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "object",
		"additionalProperties": false,
		"required": ["category","confidence","suggested_response","justification","highlights","raw_labels"],
		"properties": {
			"category": {"type": "string", "enum": ["Produtivo","Improdutivo"], "description": "Categoria do email"},
			"confidence": {"type": "number", "description": "Confiança entre 0 e 1"},
			"suggested_response": {"type": "string", "description": "Resposta sugerida em português"},
			"justification": {"type": ["string","null"], "description": "Justificativa da classificação"},
			"highlights": {"type": ["array","null"], "items": {"type": "string"}, "description": "Até 3 trechos relevantes"},
			"raw_labels": {"type": ["array","null"], "items": {"type": "string"}, "description": "Rótulos auxiliares"}
		}
	}`, string(raw))
}
