package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"fsgate/internal/config"
	"fsgate/internal/fsops"
	"fsgate/internal/guard"
	"fsgate/internal/logging"
)

// Version is the server version reported during the MCP handshake.
const Version = "1.0.0"

// Server represents an MCP server instance using mcp-go
type Server struct {
	config    *config.Config
	logger    *logging.AppLogger
	ops       *fsops.Ops
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, logger *logging.AppLogger) *Server {
	return &Server{
		config: cfg,
		logger: logger,
	}
}

// Start initializes the guard and file operations, registers the tools, and
// serves on stdio until EOF or termination.
func (s *Server) Start() error {
	s.logger.Info("Initializing MCP server", "root", s.config.Root)

	if err := s.InitializeComponents(); err != nil {
		return err
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the MCP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping MCP server")
	// The mcp-go server handles cleanup when the stdio stream closes.
	return nil
}

// InitializeComponents builds the guard, operations, and tool registry
// without serving. Split out from Start so tests can exercise the handlers
// directly.
func (s *Server) InitializeComponents() error {
	if strings.TrimSpace(s.config.Root) == "" {
		return fmt.Errorf("no allowed root directory configured")
	}

	s.logger.DebugObject("config", s.config)

	g, err := guard.New(s.config.Root, s.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize path guard: %w", err)
	}
	s.ops = fsops.New(g, s.logger)

	s.mcpServer = server.NewMCPServer(config.APP_NAME, Version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()

	return nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_uuid",
			mcp.WithDescription("Get a UUID"),
		),
		s.handleGetUUID,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("read_local_file",
			mcp.WithDescription("Read a local file within the allowed project directory."),
			mcp.WithString("file_path",
				mcp.Required(),
				mcp.Description("Path of the file to read"),
			),
		),
		s.handleReadFile,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("write_local_file",
			mcp.WithDescription("Write content to a local file within the allowed project directory. Overwrites existing file."),
			mcp.WithString("file_path",
				mcp.Required(),
				mcp.Description("Path of the file to write"),
			),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("Content to write to the file"),
			),
		),
		s.handleWriteFile,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_directory",
			mcp.WithDescription("List files and directories directly under the specified directory path within the allowed project directory."),
			mcp.WithString("dir_path",
				mcp.Required(),
				mcp.Description("Path of the directory to list"),
			),
		),
		s.handleListDirectory,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("find_files",
			mcp.WithDescription("Find files matching a glob pattern within the allowed project directory. Returned paths are relative to the allowed root."),
			mcp.WithString("base_dir",
				mcp.Required(),
				mcp.Description("Directory to search in"),
			),
			mcp.WithString("pattern",
				mcp.Required(),
				mcp.Description("Glob pattern to match, e.g. *.txt"),
			),
			mcp.WithBoolean("recursive",
				mcp.Description("Search all subdirectories, not just direct children"),
				mcp.DefaultBool(false),
			),
		),
		s.handleFindFiles,
	)

	s.logger.Debug("Registered MCP tools",
		"tools", "get_uuid, read_local_file, write_local_file, list_directory, find_files")
}

func (s *Server) handleGetUUID(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defer s.logger.LogPerformance("get_uuid", time.Now())

	return mcp.NewToolResultText(uuid.NewString()), nil
}

func (s *Server) handleReadFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defer s.logger.LogPerformance("read_local_file", time.Now())

	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	content, opErr := s.ops.ReadFile(filePath)
	if opErr != nil {
		s.logger.Debug("read_local_file failed", "path", filePath, "kind", opErr.Kind)
		return mcp.NewToolResultError(opErr.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) handleWriteFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defer s.logger.LogPerformance("write_local_file", time.Now())

	filePath, err := request.RequireString("file_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	confirmation, opErr := s.ops.WriteFile(filePath, content)
	if opErr != nil {
		s.logger.Debug("write_local_file failed", "path", filePath, "kind", opErr.Kind)
		return mcp.NewToolResultError(opErr.Error()), nil
	}
	return mcp.NewToolResultText(confirmation), nil
}

func (s *Server) handleListDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defer s.logger.LogPerformance("list_directory", time.Now())

	dirPath, err := request.RequireString("dir_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	entries, opErr := s.ops.ListDirectory(dirPath)
	if opErr != nil {
		s.logger.Debug("list_directory failed", "path", dirPath, "kind", opErr.Kind)
		return mcp.NewToolResultError(opErr.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(entries, "\n")), nil
}

func (s *Server) handleFindFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defer s.logger.LogPerformance("find_files", time.Now())

	baseDir, err := request.RequireString("base_dir")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pattern, err := request.RequireString("pattern")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	recursive := request.GetBool("recursive", false)

	matches, opErr := s.ops.FindByPattern(baseDir, pattern, recursive)
	if opErr != nil {
		s.logger.Debug("find_files failed", "base", baseDir, "pattern", pattern, "kind", opErr.Kind)
		return mcp.NewToolResultError(opErr.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(matches, "\n")), nil
}
