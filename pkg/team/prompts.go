package team

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.yaml
var promptFS embed.FS

// managerProfile names one manager of the team and what it owns.
type managerProfile struct {
	ID          string
	Name        string
	Description string
}

var profiles = map[string]managerProfile{
	"i": {
		ID:          "i",
		Name:        "Manager I",
		Description: "smart home control: lights, speakers, device status and power",
	},
	"m": {
		ID:          "m",
		Name:        "Manager M",
		Description: "long-term user memory: preferences, facts and past conversations",
	},
	"s": {
		ID:          "s",
		Name:        "Manager S",
		Description: "web search: news, weather, facts and anything on the internet",
	},
	"t": {
		ID:          "t",
		Name:        "Manager T",
		Description: "calendar and scheduling: events, appointments and reminders",
	},
}

type promptFile struct {
	Content string `yaml:"content"`
}

// loadPrompt reads one embedded prompt document.
func loadPrompt(name string) (string, error) {
	data, err := promptFS.ReadFile(fmt.Sprintf("prompts/%s.yaml", name))
	if err != nil {
		return "", fmt.Errorf("missing prompt %s: %w", name, err)
	}
	var file promptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("malformed prompt %s: %w", name, err)
	}
	if strings.TrimSpace(file.Content) == "" {
		return "", fmt.Errorf("prompt %s has no content", name)
	}
	return strings.TrimSpace(file.Content), nil
}

// managerPrompt assembles one manager's full system prompt: its embedded
// base prompt, the delegation protocol for its peers and the closing line.
func managerPrompt(self string, enabled []string) (string, error) {
	base, err := loadPrompt(self)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(base)

	if peers := peersOf(self, enabled); len(peers) > 0 {
		b.WriteString("\n\nWhen a request is outside your own responsibilities, hand the\n")
		b.WriteString("conversation off to the right teammate using a handoff tool:\n")
		for _, id := range peers {
			p := profiles[id]
			fmt.Fprintf(&b, "- handoff_to_%s: %s (%s)\n", p.ID, p.Name, p.Description)
		}
		b.WriteString("Hand off at most once per request, then stop.")
	}

	b.WriteString("\n\nAnswer the user directly once the request is handled.")
	return b.String(), nil
}

// routerPrompt instructs the routing model to classify a request onto one
// of the enabled managers.
func routerPrompt(enabled []string) (string, error) {
	base, err := loadPrompt("router")
	if err != nil {
		return "", err
	}

	ids := append([]string(nil), enabled...)
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		p := profiles[id]
		fmt.Fprintf(&b, "- %s: %s", p.ID, p.Description)
		if id != ids[len(ids)-1] {
			b.WriteString("\n")
		}
	}
	return strings.Replace(base, "{{MANAGERS}}", b.String(), 1), nil
}

// peersOf returns the enabled managers other than self, sorted.
func peersOf(self string, enabled []string) []string {
	out := make([]string, 0, len(enabled))
	for _, id := range enabled {
		if id != self {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// peerDescriptions maps every enabled manager except self to its
// description, the shape the handoff tool constructor expects.
func peerDescriptions(self string, enabled []string) map[string]string {
	out := make(map[string]string, len(enabled))
	for _, id := range peersOf(self, enabled) {
		out[id] = profiles[id].Description
	}
	return out
}
