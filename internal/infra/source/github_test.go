package source

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digestly/internal/domain/entity"
	"digestly/internal/infra/remote"
)

// scriptedConnection answers bridge calls from a method-to-payload map.
type scriptedConnection struct {
	responses map[string]string
	lastParams interface{}
}

func (s *scriptedConnection) Connect(ctx context.Context) error { return nil }

func (s *scriptedConnection) Invoke(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	s.lastParams = params
	payload, ok := s.responses[method]
	if !ok {
		return nil, &remote.ClientError{Method: method, Code: "UNKNOWN_METHOD", Message: "no handler"}
	}
	return json.RawMessage(payload), nil
}

func (s *scriptedConnection) Connected() bool { return true }
func (s *scriptedConnection) Close() error    { return nil }

func newBridgeClient(conn remote.Connection) *remote.Client {
	return remote.NewClient(conn, remote.ClientConfig{MaxAttempts: 1, BaseBackoff: time.Millisecond}, nil)
}

func TestGitHubFetchMapsRepositories(t *testing.T) {
	conn := &scriptedConnection{responses: map[string]string{
		"github.search_repos": `[
			{"full_name": "pkg/errors", "owner": "pkg", "url": "https://github.com/pkg/errors",
			 "description": "Simple error handling", "stars": 8000, "language": "Go",
			 "pushed_at": "2026-08-28T10:00:00Z"}
		]`,
	}}
	src := NewGitHubSource(newBridgeClient(conn), 5, nil)

	items, err := src.Fetch(context.Background(), "golang", 10)

	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "Trending: pkg/errors", item.Title)
	assert.Equal(t, "pkg", item.Author)
	assert.Equal(t, entity.SourceGitHub, item.Source)
	assert.Equal(t, entity.ContentTypeRepository, item.Type)
	assert.Equal(t, 8000, item.Stars())
	assert.Equal(t, "Go", item.Metadata["language"])
	assert.Equal(t, []string{"golang"}, item.Tags)
	assert.NotEmpty(t, item.ContentHash)
}

func TestGitHubFetchPassesSearchParams(t *testing.T) {
	conn := &scriptedConnection{responses: map[string]string{
		"github.search_repos": `[]`,
	}}
	src := NewGitHubSource(newBridgeClient(conn), 25, nil)

	_, err := src.Fetch(context.Background(), "distributed systems", 7)
	require.NoError(t, err)

	params, ok := conn.lastParams.(repoSearchParams)
	require.True(t, ok)
	assert.Equal(t, "distributed systems", params.Query)
	assert.Equal(t, 25, params.MinStars)
	assert.Equal(t, 7, params.Limit)
}

func TestGitHubFetchBridgeError(t *testing.T) {
	conn := &scriptedConnection{responses: map[string]string{}}
	src := NewGitHubSource(newBridgeClient(conn), 5, nil)

	_, err := src.Fetch(context.Background(), "golang", 10)
	assert.Error(t, err)
}

func TestUserActivityTagsItemsAsUserOwned(t *testing.T) {
	conn := &scriptedConnection{responses: map[string]string{
		"github.user_activity": `[
			{"type": "PushEvent", "repo": "dev/project", "url": "https://github.com/dev/project",
			 "title": "", "created_at": "2026-08-30T09:00:00Z"}
		]`,
	}}
	src := NewGitHubSource(newBridgeClient(conn), 5, nil)

	items, err := src.UserActivity(context.Background(), "devhandle", 5)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].IsUserOwned())
	assert.Equal(t, "devhandle", items[0].Author)
	assert.Equal(t, "PushEvent on dev/project", items[0].Title)
}

func TestUserActivityEmptyUsername(t *testing.T) {
	src := NewGitHubSource(newBridgeClient(&scriptedConnection{}), 5, nil)

	items, err := src.UserActivity(context.Background(), "", 5)
	assert.NoError(t, err)
	assert.Nil(t, items)
}
