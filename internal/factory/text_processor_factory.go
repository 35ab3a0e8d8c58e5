package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/extract"
	"github.com/mikey/email-classifier/internal/nlp"
	"github.com/mikey/email-classifier/internal/utils"
)

// TextProcessorFactory creates the text pipeline components
type TextProcessorFactory struct {
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreatePreprocessor creates a new Preprocessor
func (f *TextProcessorFactory) CreatePreprocessor() *nlp.Preprocessor {
	return nlp.NewPreprocessor(f.logger)
}

// CreateExtractor creates a new Extractor
func (f *TextProcessorFactory) CreateExtractor() *extract.Extractor {
	return extract.NewExtractor(f.logger)
}
