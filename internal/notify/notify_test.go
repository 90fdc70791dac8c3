package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nadmax/nexwatch/internal/alert"
	"github.com/nadmax/nexwatch/internal/issue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 1, 5, 14, 30, 22, 0, time.UTC)

func setupTestFeed(t *testing.T) (*Feed, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	f, err := NewFeed(mr.Addr())
	require.NoError(t, err)

	return f, mr
}

func sampleAlert(agent string) *alert.Alert {
	return alert.New(alert.SourceReports, []issue.Issue{
		issue.ReportFlagged(agent, "ERROR", "/reports/"+agent+"_x_ERROR.md"),
	}, now)
}

func TestNewFeed_InvalidAddress(t *testing.T) {
	_, err := NewFeed("invalid:99999")
	assert.Error(t, err)
}

func TestFeed_NotifyAndRecent(t *testing.T) {
	f, mr := setupTestFeed(t)
	defer mr.Close()
	defer func() { _ = f.Close() }()

	ctx := context.Background()
	first := sampleAlert("mk2")
	second := sampleAlert("mk3")
	require.NoError(t, f.Notify(ctx, first))
	require.NoError(t, f.Notify(ctx, second))

	alerts, err := f.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, second.ID, alerts[0].ID)
	assert.Equal(t, first.ID, alerts[1].ID)
	assert.Equal(t, "mk3", alerts[0].Issues[0].Agent)
	assert.Equal(t, issue.KindReportFlagged, alerts[0].Issues[0].Kind)
}

func TestFeed_TrimsToMaxLength(t *testing.T) {
	f, mr := setupTestFeed(t)
	defer mr.Close()
	defer func() { _ = f.Close() }()

	f.maxLen = 3
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, f.Notify(ctx, sampleAlert(fmt.Sprintf("agent-%d", i))))
	}

	items, err := mr.List(DefaultFeedKey)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	alerts, err := f.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "agent-4", alerts[0].Issues[0].Agent)
}

func TestFeed_RecentSkipsCorruptEntries(t *testing.T) {
	f, mr := setupTestFeed(t)
	defer mr.Close()
	defer func() { _ = f.Close() }()

	ctx := context.Background()
	require.NoError(t, f.Notify(ctx, sampleAlert("mk3")))
	_, err := mr.Lpush(DefaultFeedKey, "not json")
	require.NoError(t, err)

	alerts, err := f.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestFeed_Publishes(t *testing.T) {
	f, mr := setupTestFeed(t)
	defer mr.Close()
	defer func() { _ = f.Close() }()

	ctx := context.Background()
	sub := f.Subscribe(ctx)
	defer func() { _ = sub.Close() }()

	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	a := sampleAlert("mk3")
	require.NoError(t, f.Notify(ctx, a))

	select {
	case msg := <-sub.Channel():
		var got alert.Alert
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, a.ID, got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected published alert")
	}
}

func TestFeed_NotifyAfterServerClosed(t *testing.T) {
	f, mr := setupTestFeed(t)
	defer func() { _ = f.Close() }()

	mr.Close()
	assert.Error(t, f.Notify(context.Background(), sampleAlert("mk3")))
}

func TestNewEmail_Validation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         EmailConfig
		expectError bool
	}{
		{"missing key", EmailConfig{To: "ops@example.com", FromAddress: "bot@example.com"}, true},
		{"missing recipient", EmailConfig{APIKey: "k", FromAddress: "bot@example.com"}, true},
		{"missing sender", EmailConfig{APIKey: "k", To: "ops@example.com"}, true},
		{"valid", EmailConfig{APIKey: "k", To: "ops@example.com", FromAddress: "bot@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmail(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NotNil(t, e)
		})
	}
}

func TestBuildEmail(t *testing.T) {
	cfg := EmailConfig{
		FromName:    "nexwatch",
		FromAddress: "bot@example.com",
		To:          "ops@example.com, lead@example.com,",
		GuidanceDir: "agent_guidance",
	}
	a := sampleAlert("mk3")

	msg := BuildEmail(cfg, a)

	assert.Equal(t, "bot@example.com", msg.From.Address)
	assert.Equal(t, "nexwatch", msg.From.Name)
	assert.Equal(t, a.Summary(), msg.Subject)
	require.Len(t, msg.Personalizations, 1)
	require.Len(t, msg.Personalizations[0].To, 2)
	assert.Equal(t, "lead@example.com", msg.Personalizations[0].To[1].Address)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "text/plain", msg.Content[0].Type)
	assert.Contains(t, msg.Content[0].Value, "### REPORT_FLAGGED")
	assert.Contains(t, msg.Content[0].Value, "agent_guidance/ folder")
}
