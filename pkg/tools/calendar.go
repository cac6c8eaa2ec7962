package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/teamh-ai/teamh/pkg/config"
	"github.com/teamh-ai/teamh/pkg/httpclient"
)

// CalendarClient speaks a Google Calendar style REST API.
type CalendarClient struct {
	baseURL    string
	token      string
	calendarID string
	httpClient *httpclient.Client
}

func NewCalendarClient(cfg config.CalendarConfig) *CalendarClient {
	return &CalendarClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		calendarID: cfg.CalendarID,
		httpClient: httpclient.New(httpclient.WithMaxRetries(2)),
	}
}

func (c *CalendarClient) do(ctx context.Context, method, path string, query url.Values, body interface{}) (string, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s%s", c.baseURL, url.PathEscape(c.calendarID), path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	var reader io.Reader
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return "", err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return "", err
	}
	if payload != nil {
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if resp == nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return string(respBody), nil
}

// listEventsTool reads upcoming events.
type listEventsTool struct {
	client *CalendarClient
}

func NewListEventsTool(client *CalendarClient) Tool { return &listEventsTool{client: client} }

func (t *listEventsTool) GetName() string { return "list_events" }

func (t *listEventsTool) GetDescription() string {
	return "List calendar events in a time window"
}

func (t *listEventsTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "time_min", Type: "string", Description: "Window start, RFC3339 timestamp", Required: false},
			{Name: "time_max", Type: "string", Description: "Window end, RFC3339 timestamp", Required: false},
			{Name: "max_results", Type: "integer", Description: "Maximum number of events to return", Required: false},
		},
	}
}

type listEventsArgs struct {
	TimeMin    string `json:"time_min"`
	TimeMax    string `json:"time_max"`
	MaxResults int    `json:"max_results"`
}

func (t *listEventsTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var decoded listEventsArgs
	if err := DecodeArgs(args, &decoded); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	query := url.Values{}
	if decoded.TimeMin != "" {
		query.Set("timeMin", decoded.TimeMin)
	}
	if decoded.TimeMax != "" {
		query.Set("timeMax", decoded.TimeMax)
	}
	if decoded.MaxResults > 0 {
		query.Set("maxResults", strconv.Itoa(decoded.MaxResults))
	}

	body, err := t.client.do(ctx, http.MethodGet, "/events", query, nil)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: body}, nil
}

type eventArgs struct {
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

// createEventTool writes a new event, subject to approval.
type createEventTool struct {
	client *CalendarClient
}

func NewCreateEventTool(client *CalendarClient) Tool { return &createEventTool{client: client} }

func (t *createEventTool) GetName() string { return "create_event" }

func (t *createEventTool) GetDescription() string {
	return "Create a calendar event"
}

func (t *createEventTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "summary", Type: "string", Description: "Event title", Required: true},
			{Name: "start", Type: "string", Description: "Start time, RFC3339 timestamp", Required: true},
			{Name: "end", Type: "string", Description: "End time, RFC3339 timestamp", Required: true},
			{Name: "description", Type: "string", Description: "Event description", Required: false},
		},
	}
}

func (t *createEventTool) RequiresApproval() bool { return true }

func (t *createEventTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var decoded eventArgs
	if err := DecodeArgs(args, &decoded); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	if decoded.Summary == "" || decoded.Start == "" || decoded.End == "" {
		return ToolResult{Success: false, Error: "summary, start and end are required"}, nil
	}

	body, err := t.client.do(ctx, http.MethodPost, "/events", nil, decoded)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Event created: " + body}, nil
}

// updateEventTool edits an existing event, subject to approval.
type updateEventTool struct {
	client *CalendarClient
}

func NewUpdateEventTool(client *CalendarClient) Tool { return &updateEventTool{client: client} }

func (t *updateEventTool) GetName() string { return "update_event" }

func (t *updateEventTool) GetDescription() string {
	return "Update an existing calendar event"
}

func (t *updateEventTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "event_id", Type: "string", Description: "Id of the event to update", Required: true},
			{Name: "summary", Type: "string", Description: "New event title", Required: false},
			{Name: "start", Type: "string", Description: "New start time, RFC3339 timestamp", Required: false},
			{Name: "end", Type: "string", Description: "New end time, RFC3339 timestamp", Required: false},
			{Name: "description", Type: "string", Description: "New event description", Required: false},
		},
	}
}

func (t *updateEventTool) RequiresApproval() bool { return true }

func (t *updateEventTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	eventID, err := requireString(args, "event_id")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	var decoded eventArgs
	if err := DecodeArgs(args, &decoded); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	body, err := t.client.do(ctx, http.MethodPatch, "/events/"+url.PathEscape(eventID), nil, decoded)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Event updated: " + body}, nil
}

// deleteEventTool removes an event, subject to approval.
type deleteEventTool struct {
	client *CalendarClient
}

func NewDeleteEventTool(client *CalendarClient) Tool { return &deleteEventTool{client: client} }

func (t *deleteEventTool) GetName() string { return "delete_event" }

func (t *deleteEventTool) GetDescription() string {
	return "Delete a calendar event"
}

func (t *deleteEventTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters: []ToolParameter{
			{Name: "event_id", Type: "string", Description: "Id of the event to delete", Required: true},
		},
	}
}

func (t *deleteEventTool) RequiresApproval() bool { return true }

func (t *deleteEventTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	eventID, err := requireString(args, "event_id")
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	if _, err := t.client.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(eventID), nil, nil); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: "Event " + eventID + " deleted"}, nil
}

// NewCalendarTools builds the calendar tool set.
func NewCalendarTools(cfg config.CalendarConfig) []Tool {
	client := NewCalendarClient(cfg)
	return []Tool{
		NewListEventsTool(client),
		NewCreateEventTool(client),
		NewUpdateEventTool(client),
		NewDeleteEventTool(client),
	}
}
