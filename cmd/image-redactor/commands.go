package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-redactor/internal/app"
	"github.com/ironsheep/image-redactor/internal/batch"
	"github.com/ironsheep/image-redactor/internal/imaging"
	"github.com/ironsheep/image-redactor/internal/model"
	"github.com/ironsheep/image-redactor/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run INPUT_DIR OUTPUT_DIR",
	Short: "Redact every supported image under INPUT_DIR into OUTPUT_DIR",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		in, out := args[0], args[1]
		colorCyan.Printf("Input:  %s\n", in)
		colorCyan.Printf("Output: %s\n", out)
		fmt.Printf("Mode:   %s\n", a.Info().Redaction)
		fmt.Println()

		stats, err := a.ProcessDirectory(ctx, in, out, printProgress, dryRun)
		if err != nil {
			return err
		}
		if stats.DryRun {
			for _, rel := range stats.Planned {
				fmt.Printf("  %s\n", rel)
			}
			colorYellow.Printf("\nDry run: %d file(s) would be processed\n", stats.Total)
			return nil
		}
		printStats(stats)
		if stats.Failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed", stats.Failed, stats.Processed())
		}
		return nil
	},
}

func printProgress(done, total int, res *batch.Result) {
	name := filepath.Base(res.InputPath)
	if !res.Success {
		colorRed.Printf("[%d/%d] FAIL %s: %s\n", done, total, name, res.Error)
		return
	}
	fmt.Printf("[%d/%d] ", done, total)
	colorGreen.Print("ok")
	fmt.Printf("   %s (%d region(s)", name, res.RegionsDetected)
	if res.Downscaled {
		fmt.Printf(", downscaled to %dx%d", res.ProcessedSize.Width, res.ProcessedSize.Height)
	}
	fmt.Println(")")
}

func printStats(stats *batch.Stats) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	if stats.Cancelled {
		colorYellow.Printf("Cancelled after %d of %d file(s)\n", stats.Processed(), stats.Total)
	}
	fmt.Printf("Files:       %d total, ", stats.Total)
	colorGreen.Printf("%d succeeded", stats.Success)
	fmt.Print(", ")
	if stats.Failed > 0 {
		colorRed.Printf("%d failed", stats.Failed)
	} else {
		fmt.Print("0 failed")
	}
	fmt.Println()
	fmt.Printf("Faces:       %d\n", stats.FacesDetected)
	if stats.ObjectsDetected > 0 {
		fmt.Printf("Objects:     %d\n", stats.ObjectsDetected)
	}
	if stats.TextDetected > 0 {
		fmt.Printf("Text:        %d\n", stats.TextDetected)
	}
	fmt.Printf("Success:     %.1f%%\n", stats.SuccessRate())
	fmt.Printf("Time:        %s\n", stats.ProcessingTime.Round(time.Millisecond))
}

var previewCmd = &cobra.Command{
	Use:   "preview IMAGE OUTPUT",
	Short: "Outline what would be redacted in IMAGE and save it to OUTPUT",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		p, err := a.Preview(ctx, args[0])
		if err != nil {
			return err
		}
		out := imaging.OutputPathFor(args[1])
		if _, err := imaging.Save(out, p.Annotated, a.Config().Processing.OutputQuality); err != nil {
			return err
		}

		for _, r := range p.Regions {
			name := r.Source.String()
			if r.Label != "" {
				name = r.Label
			}
			fmt.Printf("  %-8s %4d,%-4d %4dx%-4d %.2f\n", name, r.X, r.Y, r.W, r.H, r.Confidence)
		}
		if p.Downscaled {
			colorYellow.Printf("Detected on %dx%d (original %dx%d)\n",
				p.ProcessedSize.Width, p.ProcessedSize.Height, p.OriginalSize.Width, p.OriginalSize.Height)
		}
		colorGreen.Printf("%d region(s), written to %s\n", len(p.Regions), out)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list DIR",
	Short: "List the supported images under DIR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		files, err := a.ListFiles(args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		colorCyan.Fprintf(os.Stderr, "%d file(s)\n", len(files))
		return nil
	},
}

var estimateCmd = &cobra.Command{
	Use:   "estimate DIR",
	Short: "Estimate processing time by timing a sample of DIR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		est, err := a.Estimate(ctx, args[0], sampleSize)
		if err != nil {
			return err
		}
		fmt.Printf("Files:        %d\n", est.TotalFiles)
		fmt.Printf("Sampled:      %d\n", est.SampleSize)
		fmt.Printf("Per file:     %s\n", est.AvgPerFile.Round(time.Millisecond))
		colorGreen.Printf("Estimated:    %s\n", est.EstimatedTime.Round(time.Second))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show version, system, model and settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		info := a.Info()
		if asJSON {
			return printJSON(info)
		}
		printInfo(info)
		return nil
	},
}

func printInfo(info app.Info) {
	colorCyan.Printf("%s %s\n", info.Name, info.Version)
	fmt.Printf("  %s\n\n", info.Description)

	sys := info.System
	fmt.Printf("System:       %s/%s, %s, %d CPU(s)\n", sys.OS, sys.Arch, sys.GoVersion, sys.LogicalCPUs)
	if sys.Platform != "" {
		fmt.Printf("Platform:     %s %s (kernel %s)\n", sys.Platform, sys.PlatformVersion, sys.KernelVersion)
	}
	if sys.MemoryTotalMB > 0 {
		fmt.Printf("Memory:       %d MB total, %d MB available\n", sys.MemoryTotalMB, sys.MemoryAvailableMB)
	}
	opencv := sys.OpenCVVersion
	if opencv == "" {
		opencv = "not linked (build with -tags gocv)"
	}
	fmt.Printf("OpenCV:       %s\n", opencv)
	printCheck("Requirements", info.Requirements.OK())
	fmt.Println()

	printModel(info.Model)
	fmt.Println()

	c := info.Config
	fmt.Printf("Redaction:    %s\n", info.Redaction)
	fmt.Printf("Confidence:   %.2f\n", c.ConfidenceThreshold)
	fmt.Printf("Max size:     %d px\n", c.MaxImageSize)
	fmt.Printf("Quality:      %d\n", c.OutputQuality)
	fmt.Printf("Extensions:   %s\n", strings.Join(c.SupportedExtensions, " "))
	if len(c.ObjectLabels) > 0 {
		fmt.Printf("Objects:      %s\n", strings.Join(c.ObjectLabels, ", "))
	}
	if c.TextDetection {
		fmt.Println("Text:         enabled")
	}
}

func printModel(m model.Info) {
	fmt.Printf("Model:        %s\n", m.Path)
	fmt.Printf("Source:       %s\n", m.URL)
	if !m.Exists {
		colorYellow.Println("Cached:       no (downloaded on first use)")
		return
	}
	fmt.Printf("Size:         %.2f MB\n", m.SizeMB)
	printCheck("Valid", m.Valid)
}

func printCheck(label string, ok bool) {
	fmt.Printf("%-14s", label+":")
	if ok {
		colorGreen.Println("ok")
	} else {
		colorRed.Println("failed")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect or manage the cached face detection model",
}

var modelInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cached model state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()
		printModel(a.ModelInfo())
		return nil
	},
}

var modelFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model if the cache does not hold a valid copy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		info, err := a.FetchModel(ctx)
		if err != nil {
			return err
		}
		colorGreen.Println("Model ready")
		printModel(info)
		return nil
	},
}

var modelClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		removed, err := a.ClearModelCache()
		if err != nil {
			return err
		}
		if removed {
			colorGreen.Printf("Removed %s\n", a.ModelInfo().Path)
		} else {
			colorYellow.Println("No cached model")
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the redaction tools over MCP on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, a, cleanup, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		log.Printf("%s MCP server v%s (built %s, commit %s)", app.Name, Version, BuildTime, GitCommit)
		return server.New(a, Version).Run(ctx)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", app.Name, Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
	},
}
