package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// callTool runs a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	params := map[string]interface{}{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: paramsJSON})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// toolResult decodes the JSON text content of a successful tool response.
func toolResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("content: got %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v", content[0]["type"])
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
}

func TestHandleToolsCall_RedactDirectory(t *testing.T) {
	r := newFakeRedactor()
	s := New(r, "test")

	var got struct {
		Total       int     `json:"total"`
		Success     int     `json:"success"`
		SuccessRate float64 `json:"success_rate"`
		Elapsed     string  `json:"elapsed"`
		DryRun      bool    `json:"dry_run"`
	}
	toolResult(t, callTool(t, s, "redact_directory", map[string]interface{}{
		"input_dir":  "/in",
		"output_dir": "/out",
		"dry_run":    true,
	}), &got)

	if got.Total != 2 || got.Success != 2 || got.SuccessRate != 100 {
		t.Errorf("stats: got %+v", got)
	}
	if got.Elapsed != "1.5s" {
		t.Errorf("elapsed: got %q", got.Elapsed)
	}
	if !got.DryRun || !r.lastDryRun {
		t.Error("dry_run was not passed through")
	}
}

func TestHandleToolsCall_RedactDirectoryProgress(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"redact_directory","arguments":{"input_dir":"/in","output_dir":"/out"},"_meta":{"progressToken":"tok"}}}`

	var out bytes.Buffer
	s := New(newFakeRedactor(), "test")
	if err := s.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var messages []map[string]interface{}
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		messages = append(messages, m)
	}

	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 2 notifications and 1 response", len(messages))
	}
	for i, m := range messages[:2] {
		if m["method"] != "notifications/progress" {
			t.Errorf("message %d: method %v", i, m["method"])
		}
		params := m["params"].(map[string]interface{})
		if params["progressToken"] != "tok" || params["progress"] != float64(i+1) || params["total"] != float64(2) {
			t.Errorf("message %d: params %v", i, params)
		}
	}
	if messages[2]["id"] != float64(7) {
		t.Errorf("final message should be the response, got %v", messages[2])
	}
}

func TestHandleToolsCall_MissingArguments(t *testing.T) {
	s := New(newFakeRedactor(), "test")

	tests := []struct {
		tool string
		args interface{}
	}{
		{"redact_directory", map[string]interface{}{"output_dir": "/out"}},
		{"redact_directory", map[string]interface{}{"input_dir": "/in"}},
		{"redact_image", map[string]interface{}{"input_path": "/a.jpg"}},
		{"preview_detections", map[string]interface{}{"max_size": 10}},
		{"list_images", nil},
		{"estimate_time", map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			resp := callTool(t, s, tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error")
			}
			if resp.Error.Code != -32000 {
				t.Errorf("code: got %d, want -32000", resp.Error.Code)
			}
			if !strings.Contains(resp.Error.Data.(string), "is required") {
				t.Errorf("data: got %v", resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_BadArguments(t *testing.T) {
	s := New(newFakeRedactor(), "test")
	resp := callTool(t, s, "list_images", map[string]interface{}{"directory": 12})
	if resp.Error == nil || !strings.Contains(resp.Error.Data.(string), "invalid arguments") {
		t.Errorf("got %+v", resp.Error)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := New(newFakeRedactor(), "test")
	resp := callTool(t, s, "image_crop", nil)
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("got %+v", resp.Error)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := New(newFakeRedactor(), "test")
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("got %+v", resp.Error)
	}
}

func TestHandleToolsCall_RedactImage(t *testing.T) {
	s := New(newFakeRedactor(), "test")

	var got struct {
		InputPath     string `json:"input_path"`
		OutputPath    string `json:"output_path"`
		Success       bool   `json:"success"`
		FacesDetected int    `json:"faces_detected"`
	}
	toolResult(t, callTool(t, s, "redact_image", map[string]interface{}{
		"input_path":  "/in/a.jpg",
		"output_path": "/out/a.jpg",
	}), &got)

	if !got.Success || got.FacesDetected != 1 || got.OutputPath != "/out/a.jpg" {
		t.Errorf("got %+v", got)
	}
}

func TestHandleToolsCall_PreviewDetections(t *testing.T) {
	s := New(newFakeRedactor(), "test")

	var got struct {
		Path          string `json:"path"`
		FacesDetected int    `json:"faces_detected"`
		Regions       []struct {
			X      int    `json:"x"`
			Source string `json:"source"`
		} `json:"regions"`
		Image struct {
			Width       int    `json:"width"`
			Height      int    `json:"height"`
			ImageBase64 string `json:"image_base64"`
			MimeType    string `json:"mime_type"`
		} `json:"image"`
	}
	toolResult(t, callTool(t, s, "preview_detections", map[string]interface{}{"path": "/in/a.jpg"}), &got)
	if got.Path != "/in/a.jpg" || got.FacesDetected != 1 {
		t.Errorf("got %+v", got)
	}
	if len(got.Regions) != 1 || got.Regions[0].Source != "face" || got.Regions[0].X != 10 {
		t.Errorf("regions: got %+v", got.Regions)
	}
	if got.Image.Width != 200 || got.Image.Height != 100 || got.Image.MimeType != "image/png" || got.Image.ImageBase64 == "" {
		t.Errorf("image: got %dx%d %s", got.Image.Width, got.Image.Height, got.Image.MimeType)
	}

	toolResult(t, callTool(t, s, "preview_detections", map[string]interface{}{"path": "/in/a.jpg", "max_size": 50}), &got)
	if got.Image.Width != 50 || got.Image.Height != 25 {
		t.Errorf("scaled image: got %dx%d, want 50x25", got.Image.Width, got.Image.Height)
	}

	if resp := callTool(t, s, "preview_detections", map[string]interface{}{"path": "/missing.png"}); resp.Error == nil {
		t.Error("expected an error for a missing image")
	}
}

func TestHandleToolsCall_ListImages(t *testing.T) {
	r := newFakeRedactor()
	s := New(r, "test")

	var got struct {
		Count int      `json:"count"`
		Files []string `json:"files"`
	}
	toolResult(t, callTool(t, s, "list_images", map[string]interface{}{"directory": "/empty"}), &got)
	if got.Count != 0 || got.Files == nil {
		t.Errorf("empty directory: got %+v", got)
	}

	r.files = []string{"/in/a.jpg", "/in/b.png"}
	toolResult(t, callTool(t, s, "list_images", map[string]interface{}{"directory": "/in"}), &got)
	if got.Count != 2 || got.Files[1] != "/in/b.png" {
		t.Errorf("got %+v", got)
	}

	resp := callTool(t, s, "list_images", map[string]interface{}{"directory": "/missing"})
	if resp.Error == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestHandleToolsCall_EstimateTime(t *testing.T) {
	s := New(newFakeRedactor(), "test")

	var got struct {
		TotalFiles int    `json:"total_files"`
		SampleSize int    `json:"sample_size"`
		Estimated  string `json:"estimated"`
	}
	toolResult(t, callTool(t, s, "estimate_time", map[string]interface{}{"directory": "/in"}), &got)
	if got.SampleSize != 5 {
		t.Errorf("default sample size: got %d, want 5", got.SampleSize)
	}
	if got.Estimated != "10s" {
		t.Errorf("estimated: got %q", got.Estimated)
	}

	toolResult(t, callTool(t, s, "estimate_time", map[string]interface{}{"directory": "/in", "sample_size": 3}), &got)
	if got.SampleSize != 3 {
		t.Errorf("sample size: got %d, want 3", got.SampleSize)
	}
}

func TestHandleToolsCall_ModelTools(t *testing.T) {
	s := New(newFakeRedactor(), "test")

	var info struct {
		Path   string `json:"path"`
		Exists bool   `json:"exists"`
	}
	toolResult(t, callTool(t, s, "model_info", nil), &info)
	if !info.Exists || info.Path != "/cache/yunet.onnx" {
		t.Errorf("model_info: got %+v", info)
	}

	var cleared struct {
		Removed bool `json:"removed"`
		Model   struct {
			Exists bool `json:"exists"`
		} `json:"model"`
	}
	toolResult(t, callTool(t, s, "clear_model_cache", nil), &cleared)
	if !cleared.Removed || cleared.Model.Exists {
		t.Errorf("first clear: got %+v", cleared)
	}
	toolResult(t, callTool(t, s, "clear_model_cache", nil), &cleared)
	if cleared.Removed {
		t.Error("second clear should report nothing removed")
	}
}

func TestHandleToolsCall_SystemInfo(t *testing.T) {
	s := New(newFakeRedactor(), "test")

	var got struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	toolResult(t, callTool(t, s, "system_info", nil), &got)
	if got.Name != "image-redactor" || got.Version != "test" {
		t.Errorf("got %+v", got)
	}
}

func TestHandleToolsCall_UpdateSettings(t *testing.T) {
	r := newFakeRedactor()
	s := New(r, "test")

	var got struct {
		Ratio               float64 `json:"ratio"`
		ConfidenceThreshold float64 `json:"confidence_threshold"`
		Pixelate            bool    `json:"pixelate"`
		BlurStrength        int     `json:"blur_strength"`
	}
	toolResult(t, callTool(t, s, "update_settings", map[string]interface{}{
		"ratio":                0.2,
		"confidence_threshold": 0.8,
		"pixelate":             false,
		"blur_strength":        21,
	}), &got)

	if got.Ratio != 0.2 || got.ConfidenceThreshold != 0.8 || got.Pixelate || got.BlurStrength != 21 {
		t.Errorf("got %+v", got)
	}
	if r.thresholdCalls != 1 || r.redactionCalls != 1 {
		t.Errorf("calls: threshold %d, redaction %d", r.thresholdCalls, r.redactionCalls)
	}
}

func TestHandleToolsCall_UpdateSettingsRejectsAll(t *testing.T) {
	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"ratio too small", map[string]interface{}{"confidence_threshold": 0.8, "ratio": 0.001}},
		{"threshold too small", map[string]interface{}{"ratio": 0.5, "confidence_threshold": 0.05}},
		{"margin too large", map[string]interface{}{"margin_ratio": 1.5}},
		{"blur strength zero", map[string]interface{}{"blur_strength": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRedactor()
			s := New(r, "test")

			resp := callTool(t, s, "update_settings", tt.args)
			if resp.Error == nil {
				t.Fatal("expected an error")
			}
			if r.thresholdCalls != 0 || r.redactionCalls != 0 {
				t.Errorf("nothing should change: threshold %d, redaction %d", r.thresholdCalls, r.redactionCalls)
			}
		})
	}
}

func TestHandleToolsCall_UpdateSettingsNoop(t *testing.T) {
	r := newFakeRedactor()
	s := New(r, "test")

	var got struct {
		Ratio float64 `json:"ratio"`
	}
	toolResult(t, callTool(t, s, "update_settings", nil), &got)
	if got.Ratio != 0.1 {
		t.Errorf("ratio: got %v", got.Ratio)
	}
	if r.thresholdCalls != 0 || r.redactionCalls != 0 {
		t.Error("empty update should not call setters")
	}
}
