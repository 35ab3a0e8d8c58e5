package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/ports"
)

func TestCliFilter_ProcessEmail(t *testing.T) {
	color.NoColor = true
	result := &core.ClassificationResult{
		Category:          core.CategoryUnproductive,
		SuggestedResponse: "Obrigado pela mensagem! Desejamos boas festas.",
		Confidence:        0.88,
		Highlights:        []string{"boas festas"},
	}

	t.Run("table output", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, "Assunto: Feliz Natal\n\nBoas festas a toda a equipe!").Return(result, nil)
		var out bytes.Buffer
		f := NewCliFilter(classifier, &out, zap.NewNop(), false, false)

		got, err := f.ProcessEmail(context.Background(), &ports.Email{Subject: "Feliz Natal", Body: "Boas festas a toda a equipe!"})
		require.NoError(t, err)
		assert.Same(t, result, got)
		assert.Contains(t, out.String(), "Improdutivo")
		assert.Contains(t, out.String(), "0.88")
		assert.Contains(t, out.String(), "boas festas")
	})

	t.Run("json output", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, "Boas festas!").Return(result, nil)
		var out bytes.Buffer
		f := NewCliFilter(classifier, &out, zap.NewNop(), true, true)

		_, err := f.ProcessEmail(context.Background(), &ports.Email{Body: "Boas festas!"})
		require.NoError(t, err)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
		assert.Equal(t, "Improdutivo", payload["category"])
	})

	t.Run("error is returned", func(t *testing.T) {
		classifier := &mockClassifier{}
		classifier.On("ClassifyEmail", mock.Anything, mock.Anything).Return(nil, core.ErrCredentialMissing)
		var out bytes.Buffer
		f := NewCliFilter(classifier, &out, zap.NewNop(), false, false)

		_, err := f.ProcessEmail(context.Background(), &ports.Email{Body: "oi"})
		assert.ErrorIs(t, err, core.ErrCredentialMissing)
		assert.Empty(t, out.String())
	})
}
