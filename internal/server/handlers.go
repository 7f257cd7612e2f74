package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ironsheep/image-redactor/internal/batch"
	"github.com/ironsheep/image-redactor/internal/imaging"
	"github.com/ironsheep/image-redactor/internal/redacterr"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "redact_directory").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	Meta struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(&params)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(params *ToolCallParams) (interface{}, error) {
	args := params.Arguments
	switch params.Name {
	// Redaction
	case "redact_directory":
		return s.handleRedactDirectory(args, params.Meta.ProgressToken)
	case "redact_image":
		return s.handleRedactImage(args)
	case "preview_detections":
		return s.handlePreviewDetections(args)

	// Discovery
	case "list_images":
		return s.handleListImages(args)
	case "estimate_time":
		return s.handleEstimateTime(args)

	// Model and system
	case "model_info":
		return s.redactor.ModelInfo(), nil
	case "clear_model_cache":
		return s.handleClearModelCache()
	case "system_info":
		return s.redactor.Info(), nil

	// Settings
	case "update_settings":
		return s.handleUpdateSettings(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", params.Name)
	}
}

// decodeArgs unmarshals tool arguments; absent arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func required(field, value string) error {
	if value == "" {
		return redacterr.Errorf(redacterr.Validation, "server.args", "%s is required", field)
	}
	return nil
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Redaction Handlers ===

type redactDirectoryArgs struct {
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`
	DryRun    bool   `json:"dry_run"`
}

type directoryResult struct {
	*batch.Stats
	SuccessRate float64 `json:"success_rate"`
	Elapsed     string  `json:"elapsed"`
}

func (s *Server) handleRedactDirectory(args json.RawMessage, progressToken interface{}) (interface{}, error) {
	var a redactDirectoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("input_dir", a.InputDir); err != nil {
		return nil, err
	}
	if err := required("output_dir", a.OutputDir); err != nil {
		return nil, err
	}

	var progress batch.ProgressFunc
	if progressToken != nil {
		progress = func(done, total int, res *batch.Result) {
			s.notify("notifications/progress", map[string]interface{}{
				"progressToken": progressToken,
				"progress":      done,
				"total":         total,
			})
		}
	}

	stats, err := s.redactor.ProcessDirectory(s.ctx, a.InputDir, a.OutputDir, progress, a.DryRun)
	if err != nil {
		return nil, err
	}
	return &directoryResult{
		Stats:       stats,
		SuccessRate: stats.SuccessRate(),
		Elapsed:     stats.ProcessingTime.Round(time.Millisecond).String(),
	}, nil
}

type redactImageArgs struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
}

func (s *Server) handleRedactImage(args json.RawMessage) (interface{}, error) {
	var a redactImageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("input_path", a.InputPath); err != nil {
		return nil, err
	}
	if err := required("output_path", a.OutputPath); err != nil {
		return nil, err
	}
	return s.redactor.ProcessImage(s.ctx, a.InputPath, a.OutputPath)
}

type previewArgs struct {
	Path    string `json:"path"`
	MaxSize int    `json:"max_size"`
}

type previewResult struct {
	*batch.Inspection
	Image *imaging.Encoded `json:"image"`
}

func (s *Server) handlePreviewDetections(args json.RawMessage) (interface{}, error) {
	var a previewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("path", a.Path); err != nil {
		return nil, err
	}
	if a.MaxSize <= 0 {
		a.MaxSize = 1024
	}

	p, err := s.redactor.Preview(s.ctx, a.Path)
	if err != nil {
		return nil, err
	}
	thumb, _ := imaging.FitWithin(p.Annotated, a.MaxSize)
	enc, err := imaging.EncodeBase64PNG(thumb)
	if err != nil {
		return nil, err
	}
	return &previewResult{Inspection: p.Inspection, Image: enc}, nil
}

// === Discovery Handlers ===

type directoryArgs struct {
	Directory  string `json:"directory"`
	SampleSize int    `json:"sample_size"`
}

func (s *Server) handleListImages(args json.RawMessage) (interface{}, error) {
	var a directoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("directory", a.Directory); err != nil {
		return nil, err
	}
	files, err := s.redactor.ListFiles(a.Directory)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return map[string]interface{}{
		"directory": a.Directory,
		"count":     len(files),
		"files":     files,
	}, nil
}

type estimateResult struct {
	*batch.Estimate
	Estimated string `json:"estimated"`
}

func (s *Server) handleEstimateTime(args json.RawMessage) (interface{}, error) {
	var a directoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := required("directory", a.Directory); err != nil {
		return nil, err
	}
	if a.SampleSize <= 0 {
		a.SampleSize = 5
	}
	est, err := s.redactor.Estimate(s.ctx, a.Directory, a.SampleSize)
	if err != nil {
		return nil, err
	}
	return &estimateResult{Estimate: est, Estimated: est.EstimatedTime.Round(time.Second).String()}, nil
}

// === Model Handlers ===

func (s *Server) handleClearModelCache() (interface{}, error) {
	removed, err := s.redactor.ClearModelCache()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"removed": removed,
		"model":   s.redactor.ModelInfo(),
	}, nil
}

// === Settings Handlers ===

type updateSettingsArgs struct {
	Ratio               *float64 `json:"ratio"`
	ConfidenceThreshold *float64 `json:"confidence_threshold"`
	Pixelate            *bool    `json:"pixelate"`
	BlurStrength        *int     `json:"blur_strength"`
	MarginRatio         *float64 `json:"margin_ratio"`
}

// handleUpdateSettings validates every field before applying any.
func (s *Server) handleUpdateSettings(args json.RawMessage) (interface{}, error) {
	var a updateSettingsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	cfg := s.redactor.Config()
	red := cfg.Redaction
	if a.Ratio != nil {
		red.Ratio = *a.Ratio
	}
	if a.Pixelate != nil {
		red.Pixelate = *a.Pixelate
	}
	if a.BlurStrength != nil {
		red.BlurStrength = *a.BlurStrength
	}
	if a.MarginRatio != nil {
		red.MarginRatio = *a.MarginRatio
	}
	if err := red.Validate(); err != nil {
		return nil, err
	}
	if a.ConfidenceThreshold != nil {
		det := cfg.Detection
		det.ConfidenceThreshold = *a.ConfidenceThreshold
		if err := det.Validate(); err != nil {
			return nil, err
		}
		if err := s.redactor.UpdateConfidenceThreshold(s.ctx, *a.ConfidenceThreshold); err != nil {
			return nil, err
		}
	}
	if red != cfg.Redaction {
		if err := s.redactor.UpdateRedaction(red); err != nil {
			return nil, err
		}
	}
	return s.redactor.Info().Config, nil
}
