// Package answer orchestrates the question pipeline: compile text into an
// intent, build the scalar query, execute it, and format the reply. A reply
// is always a base-10 integer string; any failure the user could have caused
// collapses to "0".
package answer

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/vidstat-lab/vidstat/internal/intent"
	"github.com/vidstat-lab/vidstat/internal/sqlbuilder"
)

// ZeroReply is the uniform reply for unanswerable questions.
const ZeroReply = "0"

var integerReplyPattern = regexp.MustCompile(`^-?[0-9]+$`)

// Executor runs one scalar aggregate query.
type Executor interface {
	ScalarInt(ctx context.Context, query string, params ...any) (int64, error)
}

// Service answers natural-language analytics questions.
type Service struct {
	parser   *intent.Parser
	executor Executor
	logger   *slog.Logger
}

// NewService wires the parser and storage executor together.
func NewService(parser *intent.Parser, executor Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{parser: parser, executor: executor, logger: logger}
}

// ParseAndBuild compiles text into a query without executing it. Useful for
// dry runs and for inspecting what a question compiles to.
func (s *Service) ParseAndBuild(ctx context.Context, text string) (sqlbuilder.BuiltQuery, intent.Intent, error) {
	parsed, err := s.parser.Parse(ctx, text)
	if err != nil {
		return sqlbuilder.BuiltQuery{}, intent.Intent{}, err
	}
	built, err := sqlbuilder.Build(parsed)
	if err != nil {
		return sqlbuilder.BuiltQuery{}, intent.Intent{}, err
	}
	return built, parsed, nil
}

// Answer produces the reply for one question. The returned string always
// matches ^-?[0-9]+$. The error is non-nil only for infrastructure failures
// (query execution); compile failures are logged and reported as "0".
func (s *Service) Answer(ctx context.Context, text string) (string, error) {
	built, parsed, err := s.ParseAndBuild(ctx, text)
	if err != nil {
		s.logger.Info("question not answerable", "error", err)
		return ZeroReply, nil
	}

	value, err := s.executor.ScalarInt(ctx, built.SQL, built.Params...)
	if err != nil {
		s.logger.Error("scalar query failed",
			"operation", parsed.Operation.String(),
			"error", err)
		return ZeroReply, err
	}

	reply := strconv.FormatInt(value, 10)
	if !integerReplyPattern.MatchString(reply) {
		s.logger.Error("reply violated integer contract", "reply", reply)
		return ZeroReply, nil
	}

	s.logger.Debug("answered question",
		"operation", parsed.Operation.String(),
		"reply", reply)
	return reply, nil
}
