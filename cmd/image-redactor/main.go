package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ironsheep/image-redactor/internal/app"
	"github.com/ironsheep/image-redactor/internal/config"
	"github.com/ironsheep/image-redactor/internal/debug"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	verbose    bool

	ratio        float64
	confidence   float64
	blur         bool
	blurStrength int
	margin       float64
	maxSize      int
	quality      int

	objectDetect bool
	objectModel  string
	objectLabels []string

	textDetect   bool
	textLang     string
	textPatterns []string

	dryRun     bool
	sampleSize int
	asJSON     bool

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow)
	colorCyan   = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "image-redactor",
	Short: "Pixelate or blur faces in image collections",
	Long: `image-redactor finds faces (and optionally other objects or text) in every
image under a directory and writes obscured copies, keeping the folder layout.

Examples:
  # Redact a photo library
  image-redactor run ~/Pictures/trip ~/Pictures/trip-redacted

  # See which files would be processed
  image-redactor run ~/Pictures/trip /tmp/out --dry-run

  # Stronger pixelation, blur instead of mosaic
  image-redactor run in out --ratio 0.2
  image-redactor run in out --blur --blur-strength 31

  # Check detections on one photo before a run
  image-redactor preview ~/Pictures/trip/beach.jpg /tmp/beach-boxes.png

  # Serve the tools over MCP on stdio
  image-redactor serve

Environment variables:
  IMAGE_REDACTOR_LOG_LEVEL=debug      Enable debug logging
  IMAGE_REDACTOR_<SECTION>_<KEY>      Override any config key, e.g. IMAGE_REDACTOR_REDACTION_RATIO
  HTTPS_PROXY / HTTP_PROXY            Proxy for the model download`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Logs go to stderr; stdout carries results and, under serve, the MCP stream
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	app.Version = Version

	if err := rootCmd.Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (yaml, toml or json)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	pf.Float64Var(&ratio, "ratio", 0.1, "Pixelation cell size relative to the region's short side (0.01-1.0)")
	pf.Float64Var(&confidence, "confidence", 0.6, "Minimum face score (0.1-1.0)")
	pf.BoolVar(&blur, "blur", false, "Use Gaussian blur instead of pixelation")
	pf.IntVar(&blurStrength, "blur-strength", 15, "Blur kernel size")
	pf.Float64Var(&margin, "margin", 0.1, "Grow each region by this fraction of its size on every side")
	pf.IntVar(&maxSize, "max-size", 4096, "Downscale images whose longer side exceeds this many pixels")
	pf.IntVar(&quality, "quality", 95, "JPEG output quality (0-100)")

	pf.BoolVar(&objectDetect, "object-detect", false, "Also redact objects matching --object-labels")
	pf.StringVar(&objectModel, "object-model", "", "YOLOv8 ONNX model for object detection")
	pf.StringSliceVar(&objectLabels, "object-labels", nil, "Object classes to redact, e.g. person,car")

	pf.BoolVar(&textDetect, "text-detect", false, "Also redact recognized text")
	pf.StringVar(&textLang, "text-lang", "eng", "Tesseract language for text detection")
	pf.StringSliceVar(&textPatterns, "text-patterns", nil, "Only redact words matching one of these regular expressions")

	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List files without detecting or writing anything")
	estimateCmd.Flags().IntVar(&sampleSize, "sample", 5, "Number of images to time")
	infoCmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	modelCmd.AddCommand(modelInfoCmd, modelFetchCmd, modelClearCmd)
	rootCmd.AddCommand(runCmd, previewCmd, listCmd, estimateCmd, infoCmd, modelCmd, serveCmd, versionCmd)
}

// loadConfig reads the config file and environment, then applies any flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	set := flags.Changed
	if set("ratio") {
		cfg.Redaction.Ratio = ratio
	}
	if set("confidence") {
		cfg.Detection.ConfidenceThreshold = confidence
	}
	if set("blur") {
		cfg.Redaction.Pixelate = !blur
	}
	if set("blur-strength") {
		cfg.Redaction.BlurStrength = blurStrength
	}
	if set("margin") {
		cfg.Redaction.MarginRatio = margin
	}
	if set("max-size") {
		cfg.Processing.MaxImageSize = maxSize
	}
	if set("quality") {
		cfg.Processing.OutputQuality = quality
	}
	if set("object-detect") {
		cfg.Objects.Enabled = objectDetect
	}
	if set("object-model") {
		cfg.Objects.ModelPath = objectModel
	}
	if set("object-labels") {
		cfg.Objects.Labels = objectLabels
	}
	if set("text-detect") {
		cfg.Text.Enabled = textDetect
	}
	if set("text-lang") {
		cfg.Text.Language = textLang
	}
	if set("text-patterns") {
		cfg.Text.Patterns = textPatterns
	}

	if verbose || cfg.LogLevel == "debug" {
		debug.Enable(true)
	}
	if debug.Enabled() {
		log.Printf("Debug logging enabled (model cache %s)", cfg.Model.CacheDir)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newApp loads the config and builds the application. The returned context is
// cancelled on SIGINT or SIGTERM.
func newApp(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	cleanup := func() {
		stop()
		if err := a.Close(); err != nil {
			log.Printf("Close: %v", err)
		}
	}
	return ctx, a, cleanup, nil
}
