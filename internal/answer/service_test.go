package answer

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vidstat-lab/vidstat/internal/intent"
)

type fakeExecutor struct {
	value  int64
	err    error
	query  string
	params []any
	calls  int
}

func (f *fakeExecutor) ScalarInt(ctx context.Context, query string, params ...any) (int64, error) {
	f.calls++
	f.query = query
	f.params = params
	return f.value, f.err
}

func newService(t *testing.T, executor Executor) *Service {
	t.Helper()
	parser, err := intent.NewParser(intent.LLMConfig{}, slog.Default())
	require.NoError(t, err)
	return NewService(parser, executor, slog.Default())
}

func TestAnswerHappyPath(t *testing.T) {
	executor := &fakeExecutor{value: 17}
	service := newService(t, executor)

	reply, err := service.Answer(context.Background(), "Сколько всего видео есть в базе?")
	require.NoError(t, err)
	require.Equal(t, "17", reply)
	require.Equal(t, 1, executor.calls)
	require.Contains(t, executor.query, "SELECT COUNT(*)::bigint")
}

func TestAnswerNegativeValue(t *testing.T) {
	executor := &fakeExecutor{value: -5}
	service := newService(t, executor)

	reply, err := service.Answer(context.Background(),
		"Какой суммарный прирост просмотров получили все видео за 28 ноября 2025 года?")
	require.NoError(t, err)
	require.Equal(t, "-5", reply)
}

func TestAnswerUnparsableQuestionIsZero(t *testing.T) {
	executor := &fakeExecutor{value: 99}
	service := newService(t, executor)

	reply, err := service.Answer(context.Background(), "Какая завтра погода в Москве?")
	require.NoError(t, err)
	require.Equal(t, ZeroReply, reply)
	require.Zero(t, executor.calls, "unanswerable questions must not reach storage")
}

func TestAnswerExecutorFailureReturnsZeroAndError(t *testing.T) {
	executor := &fakeExecutor{err: errors.New("connection refused")}
	service := newService(t, executor)

	reply, err := service.Answer(context.Background(), "Сколько всего видео есть в базе?")
	require.Error(t, err)
	require.Equal(t, ZeroReply, reply)
}

func TestParseAndBuildPassesParamsThrough(t *testing.T) {
	executor := &fakeExecutor{}
	service := newService(t, executor)

	built, parsed, err := service.ParseAndBuild(context.Background(),
		"Сколько видео опубликовал креатор aca1061a9d324ecf8c3fa2bb32d7be63?")
	require.NoError(t, err)
	require.Equal(t, intent.OperationCountVideos, parsed.Operation)
	require.Equal(t, []any{"aca1061a9d324ecf8c3fa2bb32d7be63"}, built.Params)
	require.Contains(t, built.SQL, "v.creator_id = $1")
}
