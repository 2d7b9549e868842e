// Package mcpserver exposes the device to MCP clients so an operator (or
// another agent) can drive the mirrored window by hand with the same
// capture and command semantics the task session uses.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/activities"
	"github.com/mfateev/temporal-mirror-agent/internal/device"
	"github.com/mfateev/temporal-mirror-agent/internal/imaging"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/screenshots"
	"github.com/mfateev/temporal-mirror-agent/internal/tools"
	"github.com/mfateev/temporal-mirror-agent/internal/version"
)

// Tool names.
const (
	ToolCaptureScreen = "capture_screen"
	ToolPressKey      = "press_key"
	ToolSwipe         = "swipe"
	ToolDoubleClick   = "double_click"
)

// sessionID namespaces screenshots taken through MCP.
const sessionID = "mcp"

// Config configures a Server.
type Config struct {
	WindowTitle string
	Codec       models.CodecConfig
}

// Server serves device tools over MCP. It tracks its own cursor, which
// starts at the window centre on the first capture.
type Server struct {
	device *activities.DeviceActivities
	input  device.InputSynthesizer
	store  screenshots.Store
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	cursor *models.Point
	window models.Rect
}

// New creates a Server. The store keeps the captured images; a
// screenshots.MemoryStore is enough for interactive use.
func New(capture device.CaptureProvider, input device.InputSynthesizer, store screenshots.Store, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Codec == (models.CodecConfig{}) {
		cfg.Codec = models.DefaultCodecConfig()
	}
	return &Server{
		device: activities.NewDeviceActivities(capture, input, store, nil, nil, logger),
		input:  input,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// MCPServer builds the MCP server with all tools registered.
func (s *Server) MCPServer() *gomcp.Server {
	server := gomcp.NewServer(&gomcp.Implementation{
		Name:    "mirror-agent",
		Version: version.Version,
	}, nil)

	server.AddTool(&gomcp.Tool{
		Name:        ToolCaptureScreen,
		Description: "Capture the mirrored phone window with the cursor marked by a red circle and crosshair.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, s.handleCapture)

	for _, spec := range []tools.ToolSpec{tools.NewMoveCursorToolSpec(), tools.NewClickCursorToolSpec()} {
		properties, required := spec.InputSchema()
		schema := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		server.AddTool(&gomcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		}, s.handleCommand)
	}

	server.AddTool(&gomcp.Tool{
		Name:        ToolPressKey,
		Description: "Press a device shortcut key.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"enum":        device.ShortcutNames(),
					"description": "Shortcut to press",
				},
			},
			"required": []string{"name"},
		},
	}, s.handlePressKey)

	server.AddTool(&gomcp.Tool{
		Name:        ToolSwipe,
		Description: "Drag across the centre of the mirrored window to scroll or change pages. Does not move the tracked cursor.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"direction": map[string]any{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "Direction the content moves",
				},
				"intensity": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Pixels from the centre to each end of the drag (default %d)", device.DefaultSwipeIntensity),
				},
				"multiplier": map[string]any{
					"type":        "integer",
					"description": fmt.Sprintf("Drag smoothness, 10 steps per unit (default %d)", device.DefaultSwipeMultiplier),
				},
			},
			"required": []string{"direction"},
		},
	}, s.handleSwipe)

	server.AddTool(&gomcp.Tool{
		Name:        ToolDoubleClick,
		Description: "Double-click at the current cursor position.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, s.handleDoubleClick)

	return server
}

// Run serves on transport until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context, transport gomcp.Transport) error {
	return s.MCPServer().Run(ctx, transport)
}

func (s *Server) currentCursor() *models.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return nil
	}
	p := *s.cursor
	return &p
}

func (s *Server) setCursor(p models.Point) {
	s.mu.Lock()
	s.cursor = &p
	s.mu.Unlock()
}

func (s *Server) currentWindow() models.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

func (s *Server) handleCapture(ctx context.Context, _ *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	out, err := s.device.CaptureScreenshot(ctx, activities.CaptureInput{
		SessionID:   sessionID,
		WindowTitle: s.cfg.WindowTitle,
		Codec:       s.cfg.Codec,
		Cursor:      s.currentCursor(),
	})
	if err != nil {
		return errorResult(fmt.Sprintf("capture failed: %v", err)), nil
	}
	s.setCursor(out.Cursor)
	s.mu.Lock()
	s.window = out.WindowRect
	s.mu.Unlock()

	data, err := s.store.Get(ctx, out.ScreenshotRef)
	if err != nil {
		return errorResult(fmt.Sprintf("load screenshot: %v", err)), nil
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{
			&gomcp.ImageContent{Data: data, MIMEType: imaging.MediaType},
			&gomcp.TextContent{Text: fmt.Sprintf("Cursor at %s, %d bytes at quality %d", out.Cursor, out.Bytes, out.Quality)},
		},
	}, nil
}

func (s *Server) handleCommand(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	cursor := s.currentCursor()
	if cursor == nil {
		return errorResult("cursor position unknown: call capture_screen first"), nil
	}

	cmd, err := tools.Decode("", req.Params.Name, req.Params.Arguments, s.logger)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	res, err := s.device.ExecuteCommand(ctx, activities.ExecuteCommandInput{
		SessionID: sessionID,
		Command:   cmd,
		Cursor:    *cursor,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}
	s.setCursor(res.Cursor)
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: res.Text}},
		IsError: res.IsError,
	}, nil
}

type pressKeyArgs struct {
	Name string `json:"name"`
}

func (s *Server) handlePressKey(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args pressKeyArgs
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}
	if err := device.PressShortcut(ctx, s.input, args.Name); err != nil {
		return errorResult(err.Error()), nil
	}
	s.logger.Info("pressed shortcut", zap.String("name", args.Name))
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf("Pressed %s", args.Name)}},
	}, nil
}

type swipeArgs struct {
	Direction  string `json:"direction"`
	Intensity  int    `json:"intensity"`
	Multiplier int    `json:"multiplier"`
}

func (s *Server) handleSwipe(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	window := s.currentWindow()
	if window.Empty() {
		return errorResult("window position unknown: call capture_screen first"), nil
	}
	var args swipeArgs
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
	}
	opts := device.SwipeOptions{
		Direction:  models.Direction(args.Direction),
		Intensity:  args.Intensity,
		Multiplier: args.Multiplier,
	}
	if err := device.Swipe(ctx, s.input, window, opts); err != nil {
		return errorResult(err.Error()), nil
	}
	s.logger.Info("swiped", zap.String("direction", args.Direction))
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf("Swiped %s", args.Direction)}},
	}, nil
}

func (s *Server) handleDoubleClick(ctx context.Context, _ *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	cursor := s.currentCursor()
	if cursor == nil {
		return errorResult("cursor position unknown: call capture_screen first"), nil
	}
	if err := device.DoubleClick(ctx, s.input, *cursor); err != nil {
		return errorResult(err.Error()), nil
	}
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf("Double-clicked at %s", *cursor)}},
	}, nil
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
