package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileYAML = `profiles:
  default:
    goal: scalp index momentum
    tools: [get_candles, get_ltp]
    max_steps: 6
  expiry-day:
    id: expiry-day
    goal: premium decay dominates
    version: 2
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistryLoadsProfiles(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, profileYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"default", "expiry-day"}, reg.IDs())

	p, ok := reg.Profile("default")
	require.True(t, ok)
	assert.Equal(t, "scalp index momentum", p.Goal)
	assert.Equal(t, 6, p.MaxSteps)
	assert.Equal(t, 1, p.Version, "missing version defaults to 1")

	_, ok = reg.Profile("missing")
	assert.False(t, ok)
}

func TestProfileToolAllowed(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, profileYAML))
	require.NoError(t, err)

	limited, _ := reg.Profile("default")
	assert.True(t, limited.ToolAllowed("get_candles"))
	assert.True(t, limited.ToolAllowed("GET_LTP"), "whitelist match ignores case")
	assert.False(t, limited.ToolAllowed("send_alert"))

	open, _ := reg.Profile("expiry-day")
	assert.True(t, open.ToolAllowed("send_alert"), "empty whitelist allows everything")
}

func TestRegistryReloadNotifiesListeners(t *testing.T) {
	path := writeProfiles(t, profileYAML)
	reg, err := NewRegistry(path)
	require.NoError(t, err)

	got := make(chan Snapshot, 1)
	reg.OnChange(func(snap Snapshot) { got <- snap })

	updated := `profiles:
  default:
    goal: fade the opening drive
    version: 3
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, reg.reload())
	reg.notifyListeners()

	select {
	case snap := <-got:
		p, ok := snap.Profiles["default"]
		require.True(t, ok)
		assert.Equal(t, "fade the opening drive", p.Goal)
		assert.Equal(t, 3, p.Version)
		assert.Greater(t, snap.Version, int64(1))
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not notified after reload")
	}
}

func TestRegistryRejectsUnknownFields(t *testing.T) {
	bad := `profiles:
  default:
    goal: g
    unexpected_key: true
`
	_, err := NewRegistry(writeProfiles(t, bad))
	assert.Error(t, err)
}
