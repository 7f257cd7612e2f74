package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	expectedTools := []string{
		"redact_directory",
		"redact_image",
		"preview_detections",
		"list_images",
		"estimate_time",
		"model_info",
		"clear_model_cache",
		"system_info",
		"update_settings",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(toolMap) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(toolMap), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties is not a map")
			}

			// every required field must be a declared property
			if req, ok := tool.InputSchema["required"]; ok {
				for _, name := range req.([]string) {
					if _, ok := props[name]; !ok {
						t.Errorf("required field %s is not a property", name)
					}
				}
			}
		})
	}
}

func TestToolDefinitions_Required(t *testing.T) {
	want := map[string][]string{
		"redact_directory":   {"input_dir", "output_dir"},
		"redact_image":       {"input_path", "output_path"},
		"preview_detections": {"path"},
		"list_images":        {"directory"},
		"estimate_time":      {"directory"},
	}

	for _, tool := range GetToolDefinitions() {
		fields, ok := want[tool.Name]
		if !ok {
			if _, has := tool.InputSchema["required"]; has {
				t.Errorf("%s: unexpected required fields", tool.Name)
			}
			continue
		}
		got, _ := tool.InputSchema["required"].([]string)
		if len(got) != len(fields) {
			t.Errorf("%s: required got %v, want %v", tool.Name, got, fields)
			continue
		}
		for i := range fields {
			if got[i] != fields[i] {
				t.Errorf("%s: required got %v, want %v", tool.Name, got, fields)
			}
		}
	}
}
