package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sjawhar/ghost-rooms/internal/storage"
	"github.com/sjawhar/ghost-rooms/internal/transcribe"
)

// RoomReader is the read side of the messages store.
type RoomReader interface {
	ListRooms() ([]storage.Room, error)
	ListMessages(roomID string) ([]transcribe.Segment, error)
}

// New builds an MCP server exposing read-only room tools.
func New(store RoomReader, version string) *server.MCPServer {
	s := server.NewMCPServer("ghost-rooms", version, server.WithToolCapabilities(false))

	h := handlers{store: store}
	s.AddTool(mcp.NewTool("list_rooms",
		mcp.WithDescription("List rooms that have messages, most recently active first."),
	), h.listRooms)
	s.AddTool(mcp.NewTool("room_transcript",
		mcp.WithDescription("Return the plain-text transcript of a room in creation order."),
		mcp.WithString("room", mcp.Required(), mcp.Description("Room id, e.g. 1234")),
	), h.roomTranscript)

	return s
}

// ServeStdio runs the server over stdin and stdout until the client disconnects.
func ServeStdio(store RoomReader, version string) error {
	return server.ServeStdio(New(store, version))
}

type handlers struct {
	store RoomReader
}

func (h handlers) listRooms(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rooms, err := h.store.ListRooms()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list rooms: %v", err)), nil
	}
	if len(rooms) == 0 {
		return mcp.NewToolResultText("No rooms yet."), nil
	}

	lines := make([]string, 0, len(rooms))
	for _, room := range rooms {
		lines = append(lines, fmt.Sprintf("%s\t%d messages\tlast activity %s",
			room.ID, room.Messages, room.LastActivity.Format(time.RFC3339)))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (h handlers) roomTranscript(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	room, err := req.RequireString("room")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	room = strings.TrimSpace(room)
	if room == "" {
		return mcp.NewToolResultError("room is required"), nil
	}

	messages, err := h.store.ListMessages(room)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list messages: %v", err)), nil
	}
	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Room %s has no messages.", room)), nil
	}
	return mcp.NewToolResultText(transcribe.FormatTranscript(messages, "")), nil
}
