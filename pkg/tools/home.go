package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/httpclient"
)

// HomeClient speaks the Home Assistant REST API.
type HomeClient struct {
	baseURL    string
	token      string
	httpClient *httpclient.Client
}

func NewHomeClient(cfg config.HomeAssistantConfig) *HomeClient {
	client := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}),
		httpclient.WithMaxRetries(2),
	)
	return &HomeClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: client,
	}
}

func (c *HomeClient) callService(ctx context.Context, domain, service, entityID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"entity_id": entityID})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/api/services/%s/%s", c.baseURL, domain, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.readResponse(c.httpClient.Do(req))
}

func (c *HomeClient) getState(ctx context.Context, entityID string) (string, error) {
	url := fmt.Sprintf("%s/api/states/%s", c.baseURL, entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.readResponse(c.httpClient.Do(req))
}

// readResponse closes the body even when the client reported an error for
// a non-2xx status.
func (c *HomeClient) readResponse(resp *http.Response, err error) (string, error) {
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if resp == nil {
		return "", fmt.Errorf("home assistant request failed: %w", err)
	}

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("home assistant returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// normalizeRoom maps spoken room names to entity suffixes.
func normalizeRoom(room string) string {
	room = strings.ToLower(strings.TrimSpace(room))
	room = strings.ReplaceAll(room, " ", "_")
	switch room {
	case "livingroom", "lounge", "living_room":
		return "living_room"
	case "bed_room", "bedroom":
		return "bedroom"
	case "bath_room", "bathroom", "bath":
		return "bathroom"
	}
	return room
}

var knownRooms = []string{"living_room", "bedroom", "bathroom"}

// lightTool turns a light on or off in one room.
type lightTool struct {
	client *HomeClient
	on     bool
}

func NewTurnOnLightTool(client *HomeClient) Tool  { return &lightTool{client: client, on: true} }
func NewTurnOffLightTool(client *HomeClient) Tool { return &lightTool{client: client, on: false} }

func (t *lightTool) GetName() string {
	if t.on {
		return "turn_on_light"
	}
	return "turn_off_light"
}

func (t *lightTool) GetDescription() string {
	if t.on {
		return "Turn on the light in a room"
	}
	return "Turn off the light in a room"
}

func (t *lightTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "room",
				Type:        "string",
				Description: "Room the light is in",
				Required:    true,
				Enum:        knownRooms,
			},
		},
	}
}

func (t *lightTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	room, err := requireString(args, "room")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	room = normalizeRoom(room)

	service := "turn_off"
	if t.on {
		service = "turn_on"
	}

	if _, err := t.client.callService(ctx, "light", service, "light."+room); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	state := "off"
	if t.on {
		state = "on"
	}
	return ToolResult{
		Success: true,
		Content: fmt.Sprintf("Light in %s turned %s", strings.ReplaceAll(room, "_", " "), state),
	}, nil
}

// deviceStatusTool reads the current state of any entity.
type deviceStatusTool struct {
	client *HomeClient
}

func NewDeviceStatusTool(client *HomeClient) Tool { return &deviceStatusTool{client: client} }

func (t *deviceStatusTool) GetName() string { return "get_device_status" }

func (t *deviceStatusTool) GetDescription() string {
	return "Get the current state of a home device by entity id, e.g. light.bedroom or media_player.speaker"
}

func (t *deviceStatusTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{
				Name:        "entity_id",
				Type:        "string",
				Description: "Entity id of the device",
				Required:    true,
			},
		},
	}
}

func (t *deviceStatusTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	entityID, err := requireString(args, "entity_id")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	state, err := t.client.getState(ctx, entityID)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: state}, nil
}

// speakerOffTool powers down the living room speaker.
type speakerOffTool struct {
	client *HomeClient
}

func NewSpeakerOffTool(client *HomeClient) Tool { return &speakerOffTool{client: client} }

func (t *speakerOffTool) GetName() string { return "turn_off_speaker" }

func (t *speakerOffTool) GetDescription() string {
	return "Turn off the living room speaker"
}

func (t *speakerOffTool) GetInfo() ToolInfo {
	return ToolInfo{Name: t.GetName(), Description: t.GetDescription()}
}

func (t *speakerOffTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	if _, err := t.client.callService(ctx, "media_player", "turn_off", "media_player.speaker"); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Speaker turned off"}, nil
}

// shutdownMiniPCTool powers down the media mini PC. Destructive enough
// that it must be approved by the user before running.
type shutdownMiniPCTool struct {
	client *HomeClient
}

func NewShutdownMiniPCTool(client *HomeClient) Tool { return &shutdownMiniPCTool{client: client} }

func (t *shutdownMiniPCTool) GetName() string { return "shutdown_mini_pc" }

func (t *shutdownMiniPCTool) GetDescription() string {
	return "Shut down the mini PC connected to the TV"
}

func (t *shutdownMiniPCTool) GetInfo() ToolInfo {
	return ToolInfo{Name: t.GetName(), Description: t.GetDescription()}
}

func (t *shutdownMiniPCTool) RequiresApproval() bool { return true }

func (t *shutdownMiniPCTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	if _, err := t.client.callService(ctx, "switch", "turn_off", "switch.mini_pc"); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Mini PC is shutting down"}, nil
}

// NewHomeTools builds the home automation tool set.
func NewHomeTools(cfg config.HomeAssistantConfig) []Tool {
	client := NewHomeClient(cfg)
	return []Tool{
		NewTurnOnLightTool(client),
		NewTurnOffLightTool(client),
		NewDeviceStatusTool(client),
		NewSpeakerOffTool(client),
		NewShutdownMiniPCTool(client),
	}
}
