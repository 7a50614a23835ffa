package intent

import (
	"context"
	"log/slog"
)

// Parser is the single entry point for text-to-Intent compilation.
type Parser struct {
	llm    *LLMClient
	logger *slog.Logger
}

// NewParser builds a parser. When cfg.Enabled is false the LLM path is
// skipped entirely and every question goes through the rule grammar.
func NewParser(cfg LLMConfig, logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := &Parser{logger: logger}
	if cfg.Enabled {
		client, err := NewLLMClient(cfg)
		if err != nil {
			return nil, err
		}
		parser.llm = client
	}
	return parser, nil
}

// Parse compiles text into a validated Intent. An LLM failure of any kind
// (transport, malformed reply, failed validation) is not surfaced to the
// caller; the rule grammar decides instead.
func (parser *Parser) Parse(ctx context.Context, text string) (Intent, error) {
	if parser.llm != nil {
		intent, err := parser.llm.ParseIntent(ctx, text)
		if err == nil {
			return intent, nil
		}
		parser.logger.Warn("llm intent compilation failed, falling back to rules", "error", err)
	}
	return ParseRules(text)
}
