package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/model"
)

func TestParseAccountURI(t *testing.T) {
	tests := []struct {
		name      string
		uri       string
		wantID    string
		wantError bool
	}{
		{name: "simple", uri: "kansoku://accounts/acme", wantID: "acme"},
		{name: "with dashes and dots", uri: "kansoku://accounts/acme-corp.eu", wantID: "acme-corp.eu"},
		{name: "empty id", uri: "kansoku://accounts/", wantError: true},
		{name: "nested path", uri: "kansoku://accounts/acme/history", wantError: true},
		{name: "wrong scheme", uri: "other://accounts/acme", wantError: true},
		{name: "garbage", uri: "garbage", wantError: true},
		{name: "empty string", uri: "", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := parseAccountURI(tt.uri)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid account URI")
				assert.Empty(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func readResource(uri string) mcplib.ReadResourceRequest {
	return mcplib.ReadResourceRequest{Params: mcplib.ReadResourceParams{URI: uri}}
}

func resourceText(t *testing.T, contents []mcplib.ResourceContents) string {
	t.Helper()
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok, "expected TextResourceContents")
	assert.Equal(t, "application/json", tc.MIMEType)
	return tc.Text
}

func TestAccountResource(t *testing.T) {
	s, _ := newTestServer(t, demoStore(t))
	ctx := context.Background()

	contents, err := s.handleAccountResource(ctx, readResource("kansoku://accounts/acme"))
	require.NoError(t, err)
	var d model.AccountDetail
	require.NoError(t, json.Unmarshal([]byte(resourceText(t, contents)), &d))
	assert.Equal(t, "acme", d.Account.AccountID)

	_, err = s.handleAccountResource(ctx, readResource("kansoku://accounts/missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStatsAndOwnersResources(t *testing.T) {
	s, _ := newTestServer(t, demoStore(t))
	ctx := context.Background()

	contents, err := s.handleStatsResource(ctx, readResource(uriStats))
	require.NoError(t, err)
	var stats model.PortfolioStats
	require.NoError(t, json.Unmarshal([]byte(resourceText(t, contents)), &stats))
	assert.Equal(t, 3, stats.RenewalsCount)

	contents, err = s.handleOwnersResource(ctx, readResource(uriOwners))
	require.NoError(t, err)
	var owners []string
	require.NoError(t, json.Unmarshal([]byte(resourceText(t, contents)), &owners))
	assert.Equal(t, []string{"Dana Whitfield", "Marcus Lee"}, owners)
}

func TestResources_StoreDown(t *testing.T) {
	s, _ := newTestServer(t, downStore{Store: demoStore(t)})

	_, err := s.handleOwnersResource(context.Background(), readResource(uriOwners))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp: owners")
}
