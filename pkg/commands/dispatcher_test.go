package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/permissions"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/storage"
	"github.com/platinummonkey/permissions/pkg/storage/sqlite"
	"github.com/platinummonkey/permissions/pkg/storage/sqlstore"
)

var epoch = time.Unix(1_700_000_000, 0)

type testEnv struct {
	d       *Dispatcher
	svc     *permissions.Service
	tracker *presence.Tracker
	metrics *observability.Metrics
}

func setupDispatcher(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	now := func() time.Time { return epoch }
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "permissions.db"), storage.DefaultTables(),
		sqlstore.WithClock(now))
	require.NoError(t, err)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { store.Close() })

	tracker := presence.NewTracker()
	svc := permissions.NewService(store, nil, permissions.WithDirectory(tracker), permissions.WithClock(now))
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	opts = append([]Option{WithMetrics(metrics)}, opts...)
	return &testEnv{
		d:       NewDispatcher(svc, opts...),
		svc:     svc,
		tracker: tracker,
		metrics: metrics,
	}
}

func TestExecuteRcon_GroupWorkflow(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()

	steps := []struct {
		body string
		want string
	}{
		{"Permissions.AddGroup VIP", "Successfully added group"},
		{"Permissions.AddGroup Admins", "Successfully added group"},
		{"Permissions.Grant VIP fly", "Successfully granted permission"},
		{"Permissions.Grant VIP kit", "Successfully granted permission"},
		{"Permissions.Grant Admins *", "Successfully granted permission"},
		{"Permissions.Add abc123 VIP", "Successfully added player."},
		{"Permissions.PlayerGroups abc123", "VIP"},
		{"Permissions.GroupPermissions VIP", "fly,kit"},
		{"Permissions.ListGroups", "1) VIP - fly; kit; \n2) Admins - *; \n"},
		{"Permissions.Revoke VIP kit", "Successfully revoked permission"},
		{"Permissions.Remove abc123 VIP", "Successfully removed player."},
		{"Permissions.PlayerGroups abc123", ""},
		{"Permissions.RemoveGroup Admins", "Successfully removed group"},
	}

	for _, step := range steps {
		assert.Equal(t, step.want, env.d.ExecuteRcon(ctx, step.body), step.body)
	}
}

func TestExecuteRcon_Errors(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()

	assert.Equal(t, "Wrong syntax", env.d.ExecuteRcon(ctx, "Permissions.Add abc123"))
	assert.Equal(t, "Wrong syntax", env.d.ExecuteRcon(ctx, "Permissions.AddGroup"))
	assert.Equal(t, "Wrong syntax, Should be AddPlayerToTimedGroup eos_id hours delayHours",
		env.d.ExecuteRcon(ctx, "Permissions.AddTimed abc VIP"))
	assert.Equal(t, "Wrong syntax, Should be AddPlayerToTimedGroup eos_id hours delayHours",
		env.d.ExecuteRcon(ctx, "Permissions.AddTimed abc VIP -1"))
	assert.Equal(t, "Parsing error", env.d.ExecuteRcon(ctx, "Permissions.AddTimed abc VIP one"))
	assert.Equal(t, "Parsing error", env.d.ExecuteRcon(ctx, "Permissions.AddTribe tribe VIP"))
	assert.Equal(t, "Wrong syntax, Should be AddTribeToTimedGroup tribeId hours delayHours",
		env.d.ExecuteRcon(ctx, "Permissions.AddTribeTimed 5 VIP"))

	reply := env.d.ExecuteRcon(ctx, "Permissions.Add abc123 Missing")
	assert.Equal(t, "group does not exist: Missing", reply)

	assert.True(t, strings.HasPrefix(env.d.ExecuteRcon(ctx, "Permissions.Nope"), "unknown command"))
	assert.True(t, strings.HasPrefix(env.d.ExecuteRcon(ctx, ""), "unknown command"))

	// no membership was created by the rejected timed add
	exists, err := env.svc.Backend().IsPlayerExists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.CommandsTotal.WithLabelValues("Permissions.AddGroup", "rcon", "error")))
}

func TestExecuteRcon_CaseInsensitiveNames(t *testing.T) {
	env := setupDispatcher(t)
	assert.Equal(t, "Successfully added group", env.d.ExecuteRcon(context.Background(), "permissions.addgroup VIP"))
}

func TestExecuteRcon_TimedAndTribes(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()

	require.Equal(t, "Successfully added group", env.d.ExecuteRcon(ctx, "Permissions.AddGroup VIP"))
	require.Equal(t, "Successfully added group", env.d.ExecuteRcon(ctx, "Permissions.AddGroup Builders"))

	assert.Equal(t, "Successfully added player to timed group.", env.d.ExecuteRcon(ctx, "Permissions.AddTimed abc VIP 2 1"))
	assert.Equal(t, "VIP - Activates in 1 Hr", env.d.ExecuteRcon(ctx, "Permissions.PlayerGroups abc"))
	assert.Equal(t, "Successfully removed player from timed group.", env.d.ExecuteRcon(ctx, "Permissions.RemoveTimed abc VIP"))

	assert.Equal(t, "Successfully added tribe.", env.d.ExecuteRcon(ctx, "Permissions.AddTribe 555 Builders"))
	assert.Equal(t, "Successfully added tribe to timed group.", env.d.ExecuteRcon(ctx, "Permissions.AddTribeTimed 555 VIP 24"))
	assert.Equal(t, "Tribe Permissions: Builders\nVIP - Ends in 1 Day", env.d.ExecuteRcon(ctx, "Permissions.TribeGroups 555"))
	assert.Equal(t, "", env.d.ExecuteRcon(ctx, "Permissions.TribeGroups nope"))
	assert.Equal(t, "", env.d.ExecuteRcon(ctx, "Permissions.TribeGroups"))
	assert.Equal(t, "Successfully removed tribe from timed group.", env.d.ExecuteRcon(ctx, "Permissions.RemoveTribeTimed 555 VIP"))
	assert.Equal(t, "Successfully removed tribe.", env.d.ExecuteRcon(ctx, "Permissions.RemoveTribe 555 Builders"))
	assert.Equal(t, "", env.d.ExecuteRcon(ctx, "Permissions.TribeGroups 555"))
}

func TestExecuteConsole_MessageRouting(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		body     string
		want     []Message
	}{
		{
			name:     "success as server message",
			settings: DefaultSettings(),
			body:     "Permissions.AddGroup VIP",
			want:     []Message{{Kind: KindServerMessage, Recipient: "admin", Color: ColorGreen, Text: "Successfully added group"}},
		},
		{
			name:     "error as server message",
			settings: DefaultSettings(),
			body:     "Permissions.AddGroup",
			want:     []Message{{Kind: KindServerMessage, Recipient: "admin", Color: ColorRed, Text: "Wrong syntax"}},
		},
		{
			name:     "success hidden",
			settings: Settings{HideAllPlayerSuccessMessages: true, TextSize: 1.5, DisplayTime: 3},
			body:     "Permissions.AddGroup VIP",
		},
		{
			name:     "error shown even when success hidden",
			settings: Settings{HideAllPlayerSuccessMessages: true, SendMessagesAsNotification: true, TextSize: 2, DisplayTime: 5},
			body:     "Permissions.Grant",
			want: []Message{{Kind: KindNotification, Recipient: "admin", Color: ColorRed,
				TextSize: 2, DisplayTime: 5, Text: "Wrong syntax"}},
		},
		{
			name:     "success as notification",
			settings: Settings{SendMessagesAsNotification: true, TextSize: 1.5, DisplayTime: 3},
			body:     "Permissions.AddGroup VIP",
			want: []Message{{Kind: KindNotification, Recipient: "admin", Color: ColorGreen,
				TextSize: 1.5, DisplayTime: 3, Text: "Successfully added group"}},
		},
		{
			name:     "listing is always a white server message",
			settings: Settings{SendMessagesAsNotification: true, HideAllPlayerSuccessMessages: true},
			body:     "Permissions.ListGroups",
			want:     []Message{{Kind: KindServerMessage, Recipient: "admin", Color: ColorWhite, Text: ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupDispatcher(t, WithSettings(tt.settings))
			out := NewRecordingMessenger()

			_ = env.d.ExecuteConsole(context.Background(), out, "admin", tt.body)
			if tt.want == nil {
				assert.Empty(t, out.Messages())
				return
			}
			assert.Equal(t, tt.want, out.Messages())
		})
	}
}

func TestExecuteConsole_ReturnsCommandError(t *testing.T) {
	env := setupDispatcher(t)
	out := NewRecordingMessenger()

	err := env.d.ExecuteConsole(context.Background(), out, "admin", "Permissions.RemoveGroup Missing")
	assert.ErrorIs(t, err, storage.ErrGroupNotFound)

	err = env.d.ExecuteConsole(context.Background(), out, "admin", "Bogus")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Len(t, out.Messages(), 2)
}

func TestReload(t *testing.T) {
	calls := 0
	reload := func(context.Context) (Settings, error) {
		calls++
		if calls > 1 {
			return Settings{}, errors.New("Can't open config.json")
		}
		return Settings{HideAllPlayerSuccessMessages: true, TextSize: 2, DisplayTime: 4}, nil
	}
	env := setupDispatcher(t, WithReloader(reload))
	ctx := context.Background()
	out := NewRecordingMessenger()

	require.NoError(t, env.d.ExecuteConsole(ctx, out, "admin", "Permissions.Reload"))
	assert.True(t, env.d.Settings().HideAllPlayerSuccessMessages)
	assert.Equal(t, []Message{{Kind: KindServerMessage, Recipient: "admin", Color: ColorGreen, Text: "Reloaded config"}}, out.Messages())

	assert.Error(t, env.d.ExecuteConsole(ctx, out, "admin", "Permissions.Reload"))
	assert.Equal(t, Message{Kind: KindServerMessage, Recipient: "admin", Color: ColorRed, Text: "Failed to reload config"}, out.Messages()[1])
	// a failed reload keeps the previous settings
	assert.Equal(t, float64(2), env.d.Settings().TextSize)

	assert.Equal(t, "Can't open config.json", env.d.ExecuteRcon(ctx, "Permissions.Reload"))
}

func TestReload_NotConfigured(t *testing.T) {
	env := setupDispatcher(t)
	assert.Equal(t, "reload is not configured", env.d.ExecuteRcon(context.Background(), "Permissions.Reload"))
}

func TestExecuteChat_Groups(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()

	require.NoError(t, env.svc.AddGroup(ctx, "VIP"))
	require.NoError(t, env.svc.AddGroup(ctx, "Builders"))
	require.NoError(t, env.svc.AddPlayerToGroup(ctx, "abc", "VIP"))
	require.NoError(t, env.svc.AddTribeToGroup(ctx, 9, "Builders"))
	env.tracker.SetTribeRoster(9, []int64{1, 2, 3})
	require.NoError(t, env.tracker.Join(ctx, presence.Session{Identity: "abc", PlayerID: 1, TribeID: 9}))

	out := NewRecordingMessenger()
	require.NoError(t, env.d.ExecuteChat(ctx, out, "abc", "/groups"))

	want := "VIP\n" + `<RichColor Color="0.91, 0.85 , 0.09, 1">Tribe Permissions: </>` + "TribeSize:3, TribeOnline:1, Builders"
	assert.Equal(t, []Message{{Kind: KindChat, Recipient: "abc", Sender: ChatSender, Text: want}}, out.Messages())

	assert.ErrorIs(t, env.d.ExecuteChat(ctx, out, "abc", "/kit"), ErrUnknownCommand)
	assert.Len(t, out.Messages(), 1)
}

func TestLogMessenger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	m := LogMessenger{Logger: logger}
	m.SendServerMessage("abc", ColorGreen, "Successfully added group")
	m.SendNotification("abc", ColorRed, 1.5, 3, "Wrong syntax")
	m.SendChatMessage("abc", ChatSender, "VIP")

	out := buf.String()
	assert.Contains(t, out, `"msg":"Successfully added group"`)
	assert.Contains(t, out, `"display_time":3`)
	assert.Contains(t, out, `"sender":"Permissions"`)
}

func TestNames(t *testing.T) {
	env := setupDispatcher(t)
	names := env.d.Names()
	assert.Len(t, names, 17)
	assert.Contains(t, names, "Permissions.AddTribeTimed")
	assert.Contains(t, names, "Permissions.Reload")
}
