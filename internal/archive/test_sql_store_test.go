package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uiagent/internal/types"
)

func newSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	s.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_RecordAndList(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	t1 := types.Turn{UserIntent: "login page", Code: "<Card />", Plan: types.SentinelPlan("raw"), Version: 1}
	e, err := s.Record(ctx, Event{SessionID: "s1", Kind: KindAppend, Turns: 1, Turn: &t1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Seq)

	e, err = s.Record(ctx, Event{SessionID: "s1", Kind: KindRollback, Turns: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Seq)

	_, err = s.Record(ctx, Event{SessionID: "s2", Kind: KindAppend, Turns: 1, Turn: &t1})
	require.NoError(t, err)

	events, err := s.Events(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, KindAppend, events[0].Kind)
	require.NotNil(t, events[0].Turn)
	assert.Equal(t, "login page", events[0].Turn.UserIntent)
	assert.True(t, events[0].Turn.Plan.IsSentinel())
	assert.Equal(t, KindRollback, events[1].Kind)
	assert.Nil(t, events[1].Turn)
	assert.Equal(t, int64(1_700_000_000_000), events[1].CreatedAt.UnixMilli())
}

func TestSQLStore_EmptySession(t *testing.T) {
	s := newSQLite(t)
	events, err := s.Events(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = s.Record(context.Background(), Event{Kind: KindAppend})
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}
