package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func emptySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Redaction
		{
			Name:        "redact_directory",
			Description: "Redact faces (and configured objects or text) in every supported image under a directory, mirroring the folder layout into the output directory. Files that fail are reported and skipped. Sends notifications/progress when the request carries a progressToken.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input_dir":  stringProp("Absolute path of the directory to scan recursively"),
					"output_dir": stringProp("Absolute path of the directory that receives redacted copies"),
					"dry_run": map[string]interface{}{
						"type":        "boolean",
						"description": "List the files that would be processed without detecting or writing anything. Default false",
						"default":     false,
					},
				},
				"required": []string{"input_dir", "output_dir"},
			},
		},
		{
			Name:        "redact_image",
			Description: "Redact a single image file and write the result to output_path.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"input_path":  stringProp("Absolute path to the source image"),
					"output_path": stringProp("Absolute path for the redacted image. WebP inputs are written as PNG"),
				},
				"required": []string{"input_path", "output_path"},
			},
		},
		{
			Name:        "preview_detections",
			Description: "Run detection on one image without redacting it and return the regions plus a PNG with each region outlined and captioned. Use this to check what would be obscured before a run.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
					"max_size": map[string]interface{}{
						"type":        "integer",
						"description": "Longest side of the returned preview in pixels. Default 1024",
						"default":     1024,
					},
				},
				"required": []string{"path"},
			},
		},

		// Discovery
		{
			Name:        "list_images",
			Description: "List the supported image files under a directory, recursively and in sorted order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"directory": stringProp("Absolute path of the directory to scan"),
				},
				"required": []string{"directory"},
			},
		},
		{
			Name:        "estimate_time",
			Description: "Estimate how long redacting a directory will take by timing detection on a small sample of its images.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"directory": stringProp("Absolute path of the directory to estimate"),
					"sample_size": map[string]interface{}{
						"type":        "integer",
						"description": "Number of images to time. Default 5",
						"default":     5,
					},
				},
				"required": []string{"directory"},
			},
		},

		// Model and system
		{
			Name:        "model_info",
			Description: "Report the face detection model's cache path, source URL, size and validity.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "clear_model_cache",
			Description: "Delete the cached face detection model. It is downloaded again on next use.",
			InputSchema: emptySchema(),
		},
		{
			Name:        "system_info",
			Description: "Report application version, host facts, requirement checks, detector state and current settings.",
			InputSchema: emptySchema(),
		},

		// Settings
		{
			Name:        "update_settings",
			Description: "Change redaction or detection settings for subsequent calls. Omitted fields keep their current value; invalid values are rejected and nothing changes.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ratio": map[string]interface{}{
						"type":        "number",
						"description": "Pixelation cell size relative to the region's short side, 0.01 to 1.0",
					},
					"confidence_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum face score, 0.1 to 1.0",
					},
					"pixelate": map[string]interface{}{
						"type":        "boolean",
						"description": "true for pixelation, false for Gaussian blur",
					},
					"blur_strength": map[string]interface{}{
						"type":        "integer",
						"description": "Blur kernel size (odd, >= 1)",
					},
					"margin_ratio": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of each region's size added on every side, 0 to under 1",
					},
				},
			},
		},
	}
}
