package team

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamh-ai/teamh/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.LLM.APIKey = "test-key"
	cfg.Embedder.APIKey = "test-key"
	cfg.Memory.Chromem.PersistPath = filepath.Join(t.TempDir(), "vectors")
	return cfg
}

func TestNewWiresAllManagers(t *testing.T) {
	cfg := testConfig(t)

	tm, err := New(cfg)
	require.NoError(t, err)
	defer tm.Close()

	require.NotNil(t, tm.Executor)
	require.NotNil(t, tm.Store)
	require.NotNil(t, tm.Memory, "enabling manager m brings up the memory service")
	assert.Equal(t, "default_user", tm.DefaultUserID)
}

func TestNewSubsetSkipsMemoryService(t *testing.T) {
	cfg := testConfig(t)
	cfg.Team.Managers = []string{"i", "s"}

	tm, err := New(cfg)
	require.NoError(t, err)
	defer tm.Close()

	assert.Nil(t, tm.Memory)
}

func TestRouterPromptListsEnabledManagers(t *testing.T) {
	prompt, err := routerPrompt([]string{"s", "i"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- i: ")
	assert.Contains(t, prompt, "- s: ")
	assert.NotContains(t, prompt, "- m: ")
	assert.NotContains(t, prompt, "{{MANAGERS}}")
	assert.Contains(t, prompt, `"next_agent"`)
}

func TestManagerPromptListsPeerHandoffs(t *testing.T) {
	prompt, err := managerPrompt("i", []string{"i", "m", "s", "t"})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Manager I")
	assert.NotContains(t, prompt, "handoff_to_i")
	assert.Contains(t, prompt, "handoff_to_m")
	assert.Contains(t, prompt, "handoff_to_s")
	assert.Contains(t, prompt, "handoff_to_t")
}

func TestManagerPromptSoloHasNoHandoffSection(t *testing.T) {
	prompt, err := managerPrompt("s", []string{"s"})
	require.NoError(t, err)

	assert.NotContains(t, prompt, "handoff_to_")
	assert.Contains(t, prompt, "Answer the user directly")
}

func TestAllEmbeddedPromptsLoad(t *testing.T) {
	for _, name := range []string{"i", "m", "s", "t", "router"} {
		content, err := loadPrompt(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, content, name)
	}
}

func TestPeerDescriptions(t *testing.T) {
	peers := peerDescriptions("m", []string{"i", "m", "s"})

	assert.Len(t, peers, 2)
	assert.Contains(t, peers, "i")
	assert.Contains(t, peers, "s")
	assert.NotContains(t, peers, "m")
}

func TestDefaultManager(t *testing.T) {
	assert.Equal(t, "i", defaultManager([]string{"m", "i", "s"}))
	assert.Equal(t, "m", defaultManager([]string{"m", "s"}))
}
