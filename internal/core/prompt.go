package core

import (
	"fmt"
	"strings"
)

const maxPromptTokens = 25

const systemInstructions = "Você é um assistente que classifica emails corporativos escritos em português ou inglês. " +
	"Há apenas duas categorias: Produtivo (o email pede uma ação, uma resposta ou um acompanhamento) " +
	"e Improdutivo (felicitações, agradecimentos ou mensagens que não exigem ação imediata). " +
	"Responda sempre com um único objeto JSON contendo os campos: " +
	"category (Produtivo ou Improdutivo), confidence (número entre 0 e 1), " +
	"suggested_response (resposta curta e cordial em português), " +
	"justification (uma frase explicando a decisão), " +
	"highlights (lista com até 3 trechos relevantes do email) e " +
	"raw_labels (lista de rótulos auxiliares). " +
	"A resposta sugerida deve ser coerente com a categoria e indicar o próximo passo adequado, " +
	"com tom profissional e sem inventar informações que não estejam no email."

// BuildPrompt assembles the system and user messages for a classification.
// The result depends only on its inputs.
func BuildPrompt(text string, features Features) []PromptMessage {
	tokens := features.Tokens
	if len(tokens) > maxPromptTokens {
		tokens = tokens[:maxPromptTokens]
	}

	tokenList := strings.Join(tokens, ", ")
	if tokenList == "" {
		tokenList = "nenhum"
	}
	phraseList := strings.Join(features.KeyPhrases, "; ")
	if phraseList == "" {
		phraseList = "nenhuma"
	}

	user := fmt.Sprintf(
		"Email:\n\"\"\"\n%s\n\"\"\"\n\nTokens limpos: %s\nFrases-chave: %s\nRetorne somente o JSON. Nada além do JSON.",
		strings.TrimSpace(text), tokenList, phraseList,
	)

	return []PromptMessage{
		{Role: RoleSystem, Content: systemInstructions},
		{Role: RoleUser, Content: user},
	}
}
