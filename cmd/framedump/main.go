// Frame dump tool - runs the simulation headless for a number of ticks and
// renders the final scene to a PNG file for inspection.
//
// Usage: go run ./cmd/framedump -config flock.yaml -ticks 600 -out frame.png
package main

import (
	"flag"
	"fmt"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/probes"
	"github.com/pthm-cable/flock/renderer"
	"github.com/pthm-cable/flock/sim"
)

func main() {
	configPath := flag.String("config", "", "Config YAML file (empty = use defaults)")
	ticks := flag.Int("ticks", 600, "Ticks to simulate before rendering")
	outPath := flag.String("out", "frame.png", "Output PNG path")
	width := flag.Int("width", 1024, "Render width")
	height := flag.Int("height", 768, "Render height")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	set, err := probes.FromConfig(cfg.Obstacles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load probes: %v\n", err)
		os.Exit(1)
	}

	s, err := sim.New(cfg, sim.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create simulation: %v\n", err)
		os.Exit(1)
	}
	defer s.Dispose()
	if err := s.Build(set); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build obstacle index: %v\n", err)
		os.Exit(1)
	}
	for i := 0; i < *ticks; i++ {
		if err := s.Step(cfg.Sim.DT); err != nil {
			fmt.Fprintf(os.Stderr, "Step %d failed: %v\n", i, err)
			os.Exit(1)
		}
	}

	// Initialize raylib with hidden window
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Frame Dump")
	defer rl.CloseWindow()

	cam := camera.New(s.Grid().Center(), 1)
	cam.Frame(s.Grid().Min(), s.Grid().Max())
	scene := renderer.NewScene()

	target := rl.LoadRenderTexture(int32(*width), int32(*height))
	defer rl.UnloadRenderTexture(target)

	rl.BeginTextureMode(target)
	scene.Begin(cam)
	scene.DrawBounds(s.Grid())
	scene.Obstacles.DrawProbes(s.Index())
	scene.Agents.Draw(s.Records(), -1)
	scene.End()
	rl.EndTextureMode()

	// Get image from texture and flip it (OpenGL convention)
	img := rl.LoadImageFromTexture(target.Texture)
	rl.ImageFlipVertical(img)

	success := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)

	if success {
		fmt.Printf("Tick %d rendered to: %s (%dx%d)\n", s.Tick(), *outPath, *width, *height)
	} else {
		fmt.Fprintf(os.Stderr, "Failed to export image\n")
		os.Exit(1)
	}
}
