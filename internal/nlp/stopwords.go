package nlp

// stopwords holds Portuguese and English function words, already folded to
// lower case. Tokens found here never become features.
var stopwords = toSet([]string{
	// pt
	"a", "à", "ao", "aos", "aquela", "aquele", "aqueles", "as", "às", "até", "com", "como", "da", "das",
	"de", "dela", "dele", "deles", "delas", "depois", "do", "dos", "e", "é", "ela", "elas", "ele", "eles",
	"em", "entre", "era", "eram", "essa", "essas", "esse", "esses", "esta", "está", "estão", "estas",
	"este", "estes", "eu", "foi", "foram", "há", "isso", "isto", "já", "lhe", "lhes", "mais", "mas",
	"me", "mesmo", "meu", "meus", "minha", "minhas", "muito", "na", "nas", "não", "nem", "no", "nos",
	"nós", "num", "numa", "o", "os", "ou", "para", "pela", "pelas", "pelo", "pelos", "por", "pois",
	"qual", "quando", "que", "quem", "se", "seja", "sem", "ser", "seu", "seus", "só", "sua", "suas",
	"também", "te", "tem", "têm", "tenho", "ter", "teu", "tua", "um", "uma", "umas", "uns", "vai",
	"você", "vocês", "vos", "olá", "oi", "att", "atenciosamente", "obrigado", "obrigada",
	// en
	"about", "after", "all", "also", "an", "and", "any", "are", "as", "at", "be", "been", "but", "by",
	"can", "could", "did", "do", "does", "for", "from", "had", "has", "have", "he", "her", "him", "his",
	"how", "i", "if", "in", "into", "is", "it", "its", "just", "me", "my", "no", "not", "of", "on",
	"or", "our", "please", "she", "so", "than", "that", "the", "their", "them", "then", "there",
	"these", "they", "this", "to", "too", "us", "was", "we", "were", "what", "when", "which", "who",
	"will", "with", "would", "you", "your", "hi", "hello", "thanks", "regards",
})

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}
