// Package tools defines the MCP tool catalog and dispatches tool calls to
// the Slack Web API. Upstream failures are rendered as error results inside
// the normal envelope so the calling assistant can display them, never as
// transport faults.
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog/log"

	"github.com/cherrin1/remote-slack-server/internal/slack"
)

const (
	ToolSearchMessages    = "slack_search_messages"
	ToolListChannels      = "slack_list_channels"
	ToolGetChannelHistory = "slack_get_channel_history"
	ToolSendMessage       = "slack_send_message"
	ToolListUsers         = "slack_list_users"
)

const (
	defaultSearchCount  = 20
	defaultHistoryLimit = 20
	defaultListLimit    = 100

	// fallbackChannelLimit caps how many channels the degraded-mode search
	// walks so it stays one page of history per channel.
	fallbackChannelLimit  = 10
	fallbackHistoryLimit  = 50
	fallbackMinTermLength = 3
)

// Dispatcher resolves one tool call into one outbound Slack call.
type Dispatcher struct {
	slack *slack.Client
}

// NewDispatcher creates a dispatcher backed by the given Slack client.
func NewDispatcher(client *slack.Client) *Dispatcher {
	return &Dispatcher{slack: client}
}

// Tools returns the catalog of operations the assistant may invoke.
func (d *Dispatcher) Tools() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(ToolSearchMessages,
			mcp.WithDescription("Search Slack messages by query. Falls back to filtering recent channel history when the token lacks search scope."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query"),
			),
			mcp.WithNumber("count",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		mcp.NewTool(ToolListChannels,
			mcp.WithDescription("List channels visible to the connected user"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of channels (default 100)"),
			),
		),
		mcp.NewTool(ToolGetChannelHistory,
			mcp.WithDescription("Fetch recent messages from a channel"),
			mcp.WithString("channel",
				mcp.Required(),
				mcp.Description("Channel ID, e.g. C0123456789"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages (default 20)"),
			),
		),
		mcp.NewTool(ToolSendMessage,
			mcp.WithDescription("Send a message to a channel as the connected user"),
			mcp.WithString("channel",
				mcp.Required(),
				mcp.Description("Channel ID to post to"),
			),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text"),
			),
		),
		mcp.NewTool(ToolListUsers,
			mcp.WithDescription("List members of the connected workspace"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of users (default 100)"),
			),
		),
	}
}

// CallTool executes one tool with the caller's Slack token. Unknown tool
// names and upstream failures come back as error results, not Go errors.
func (d *Dispatcher) CallTool(ctx context.Context, token, name string, args map[string]interface{}) *mcp.CallToolResult {
	switch name {
	case ToolSearchMessages:
		return d.searchMessages(ctx, token, args)
	case ToolListChannels:
		return d.listChannels(ctx, token, args)
	case ToolGetChannelHistory:
		return d.getChannelHistory(ctx, token, args)
	case ToolSendMessage:
		return d.sendMessage(ctx, token, args)
	case ToolListUsers:
		return d.listUsers(ctx, token, args)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("Unknown tool: %s", name))
	}
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argInt(args map[string]interface{}, key string, def int) int {
	// JSON numbers arrive as float64.
	if v, ok := args[key].(float64); ok && v > 0 {
		return int(v)
	}
	return def
}

func (d *Dispatcher) sendMessage(ctx context.Context, token string, args map[string]interface{}) *mcp.CallToolResult {
	channel := argString(args, "channel")
	text := argString(args, "text")
	if channel == "" || text == "" {
		return mcp.NewToolResultError("channel and text arguments are required")
	}

	resp, err := d.slack.PostMessage(ctx, token, channel, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err))
	}

	return mcp.NewToolResultText(fmt.Sprintf("Message sent to %s (ts %s)", resp.Channel, resp.TS))
}

func (d *Dispatcher) listChannels(ctx context.Context, token string, args map[string]interface{}) *mcp.CallToolResult {
	limit := argInt(args, "limit", defaultListLimit)

	channels, err := d.slack.ListChannels(ctx, token, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list channels: %v", err))
	}
	if len(channels) == 0 {
		return mcp.NewToolResultText("No channels visible to this user.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Channels (%d):\n", len(channels))
	for _, ch := range channels {
		fmt.Fprintf(&b, "#%s (%s) - %d members", ch.Name, ch.ID, ch.NumMembers)
		if ch.Topic.Value != "" {
			fmt.Fprintf(&b, " - %s", ch.Topic.Value)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String())
}

func (d *Dispatcher) getChannelHistory(ctx context.Context, token string, args map[string]interface{}) *mcp.CallToolResult {
	channel := argString(args, "channel")
	if channel == "" {
		return mcp.NewToolResultError("channel argument is required")
	}
	limit := argInt(args, "limit", defaultHistoryLimit)

	messages, err := d.slack.GetChannelHistory(ctx, token, channel, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch history: %v", err))
	}
	if len(messages) == 0 {
		return mcp.NewToolResultText("No messages in this channel.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last %d messages:\n", len(messages))
	for _, msg := range messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", msg.TS, msg.User, msg.Text)
	}
	return mcp.NewToolResultText(b.String())
}

func (d *Dispatcher) listUsers(ctx context.Context, token string, args map[string]interface{}) *mcp.CallToolResult {
	limit := argInt(args, "limit", defaultListLimit)

	users, err := d.slack.ListUsers(ctx, token, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list users: %v", err))
	}

	var b strings.Builder
	count := 0
	for _, u := range users {
		if u.Deleted || u.IsBot {
			continue
		}
		count++
		fmt.Fprintf(&b, "%s (%s)", u.Name, u.ID)
		if u.RealName != "" {
			fmt.Fprintf(&b, " - %s", u.RealName)
		}
		if u.Profile.Email != "" {
			fmt.Fprintf(&b, " <%s>", u.Profile.Email)
		}
		b.WriteString("\n")
	}
	if count == 0 {
		return mcp.NewToolResultText("No users found.")
	}
	return mcp.NewToolResultText(fmt.Sprintf("Users (%d):\n%s", count, b.String()))
}

func (d *Dispatcher) searchMessages(ctx context.Context, token string, args map[string]interface{}) *mcp.CallToolResult {
	query := argString(args, "query")
	if query == "" {
		return mcp.NewToolResultError("query argument is required")
	}
	count := argInt(args, "count", defaultSearchCount)

	matches, err := d.slack.SearchMessages(ctx, token, query, count)
	if err != nil {
		var apiErr *slack.Error
		if errors.As(err, &apiErr) && apiErr.IsScopeError() {
			// Token lacks search scope; degrade to history filtering
			// rather than failing.
			log.Debug().Str("reason", apiErr.Reason).Msg("search scope missing, using history fallback")
			return d.fallbackSearch(ctx, token, query, count)
		}
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err))
	}
	if len(matches) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found for %q.", query))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q (%d):\n", query, len(matches))
	for _, m := range matches {
		fmt.Fprintf(&b, "[#%s] %s: %s\n", m.Channel.Name, m.Username, m.Text)
	}
	return mcp.NewToolResultText(b.String())
}

// fallbackSearch substitutes for full-text search when the token lacks the
// scope: it fetches recent history of visible channels and keeps messages
// containing any query term longer than two characters, compared lowercase.
func (d *Dispatcher) fallbackSearch(ctx context.Context, token, query string, count int) *mcp.CallToolResult {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found for %q.", query))
	}

	channels, err := d.slack.ListChannels(ctx, token, fallbackChannelLimit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search fallback failed: %v", err))
	}

	var b strings.Builder
	found := 0
	for _, ch := range channels {
		if found >= count {
			break
		}
		messages, err := d.slack.GetChannelHistory(ctx, token, ch.ID, fallbackHistoryLimit)
		if err != nil {
			// A single unreadable channel does not abort the fallback.
			continue
		}
		for _, msg := range messages {
			if found >= count {
				break
			}
			if matchesTerms(msg.Text, terms) {
				fmt.Fprintf(&b, "[#%s] %s: %s\n", ch.Name, msg.User, msg.Text)
				found++
			}
		}
	}

	if found == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found for %q (searched recent history of %d channels).", query, len(channels)))
	}
	return mcp.NewToolResultText(fmt.Sprintf("Results for %q from recent history (search scope unavailable):\n%s", query, b.String()))
}

// searchTerms splits a query on whitespace and keeps lowercase terms longer
// than two characters.
func searchTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if len(t) >= fallbackMinTermLength {
			terms = append(terms, t)
		}
	}
	return terms
}

func matchesTerms(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
