package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
)

// notificationMethod is the MCP method used for case events.
const notificationMethod = "notifications/message"

// CaseNotifier pushes case events to the MCP sessions watching the case.
type CaseNotifier struct {
	mcpServer *server.MCPServer
	watches   *WatchRegistry
	logger    *slog.Logger
}

// NewCaseNotifier creates a notifier over the given server and registry.
func NewCaseNotifier(mcpServer *server.MCPServer, watches *WatchRegistry, logger *slog.Logger) *CaseNotifier {
	return &CaseNotifier{mcpServer: mcpServer, watches: watches, logger: logger}
}

// Notify sends event to every session watching its case.
// Best-effort: sessions that went away are dropped from the registry.
func (n *CaseNotifier) Notify(_ context.Context, event streaming.StreamEvent) error {
	params := map[string]any{
		"level":  "info",
		"logger": "sopprogress",
		"data":   event,
	}

	var errs []error
	for _, sessionID := range n.watches.SessionsFor(event.CaseID) {
		err := n.mcpServer.SendNotificationToSpecificClient(sessionID, notificationMethod, params)
		switch {
		case err == nil:
		case errors.Is(err, server.ErrSessionNotFound):
			// Session closed between lookup and send.
			n.watches.Remove(sessionID)
		default:
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run forwards hub events until ctx is done.
func (n *CaseNotifier) Run(ctx context.Context, hub streaming.EventHub) error {
	events, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := n.Notify(ctx, event); err != nil {
				n.logger.Warn("notify case watchers",
					slog.String("case_id", event.CaseID), slog.String("error", err.Error()))
			}
		}
	}
}
