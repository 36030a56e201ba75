// Probe field generator - interactive noise obstacle preview with sliders,
// or headless generation of the configured shapes.
//
// Usage:
//
//	go run ./cmd/probegen -out probes.csv.zst
//	go run ./cmd/probegen -headless -config flock.yaml -out probes.csv
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/probes"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	sliceRes     = 256
	panelWidth   = windowWidth - previewSize - 30
)

// NoiseParams holds the tunable noise shape.
type NoiseParams struct {
	Scale     float32
	Threshold float32
	Spacing   float32
	SliceY    float32 // fraction of the box height, 0 = bottom
	Seed      int64
}

func defaultParams() NoiseParams {
	return NoiseParams{Scale: 1.5, Threshold: 0.62, Spacing: 0.25, SliceY: 0.5, Seed: 12345}
}

func main() {
	configPath := flag.String("config", "", "Config YAML file (empty = use defaults)")
	outPath := flag.String("out", "probes.csv", "Output probe file (.csv or .csv.zst)")
	headless := flag.Bool("headless", false, "Write the configured obstacle shapes without opening a window")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *headless {
		set, err := probes.FromConfig(cfg.Obstacles)
		if err != nil {
			slog.Error("failed to generate probes", "error", err)
			os.Exit(1)
		}
		if err := probes.SaveFile(*outPath, set); err != nil {
			slog.Error("failed to save probes", "error", err)
			os.Exit(1)
		}
		slog.Info("probes written", "path", *outPath, "count", set.Len())
		return
	}

	center := cfg.Derived.GridCenter
	extent := cfg.Derived.GridExtent

	rl.InitWindow(windowWidth, windowHeight, "Probe Field Generator")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	params := defaultParams()
	slice := make([]float32, sliceRes*sliceRes)
	img := rl.GenImageColor(sliceRes, sliceRes, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)

	var field probes.Set
	status := ""
	needsRegen := true

	for !rl.WindowShouldClose() {
		if needsRegen {
			noise := opensimplex.NewNormalized(params.Seed)
			y := center.Y - extent.Y + float64(params.SliceY)*2*extent.Y
			for j := 0; j < sliceRes; j++ {
				z := center.Z - extent.Z + (float64(j)+0.5)/sliceRes*2*extent.Z
				for i := 0; i < sliceRes; i++ {
					x := center.X - extent.X + (float64(i)+0.5)/sliceRes*2*extent.X
					s := float64(params.Scale)
					slice[j*sliceRes+i] = float32(noise.Eval3(x/s, y/s, z/s))
				}
			}
			updateTexture(texture, slice, params.Threshold)

			field, err = probes.NoiseField(center, extent, float64(params.Spacing), float64(params.Scale), float64(params.Threshold), params.Seed, 1)
			status = ""
			if err != nil {
				status = err.Error()
			}
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: sliceRes, Height: sliceRes},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Probes: %d  Volume: %.1f x %.1f x %.1f", field.Len(), 2*extent.X, 2*extent.Y, 2*extent.Z), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Slice y = %.2f (XZ plane)", center.Y-extent.Y+float64(params.SliceY)*2*extent.Y), 15, statsY+20, 16, rl.DarkGray)
		if status != "" {
			rl.DrawText(status, 15, statsY+40, 14, rl.Maroon)
		}

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Noise Obstacle Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		var changed bool
		params.Scale, changed = slider(panelX, &panelY, "Scale (feature size)", "0.2", "6.0", params.Scale, 0.2, 6, "%.2f")
		needsRegen = needsRegen || changed
		params.Threshold, changed = slider(panelX, &panelY, "Threshold (higher = sparser)", "0.3", "0.9", params.Threshold, 0.3, 0.9, "%.3f")
		needsRegen = needsRegen || changed
		params.Spacing, changed = slider(panelX, &panelY, "Spacing (probe lattice step)", "0.1", "1.0", params.Spacing, 0.1, 1, "%.2f")
		needsRegen = needsRegen || changed
		params.SliceY, changed = slider(panelX, &panelY, "Slice height", "0", "1", params.SliceY, 0, 1, "%.2f")
		needsRegen = needsRegen || changed

		rl.DrawText(fmt.Sprintf("Seed: %d", params.Seed), int32(panelX), int32(panelY), 14, rl.Gray)
		panelY += 30

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			params.Seed = int64(rl.GetRandomValue(0, 99999))
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaultParams()
			needsRegen = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 250, Height: 30}, "Save "+*outPath) {
			if err := probes.SaveFile(*outPath, field); err != nil {
				status = err.Error()
			} else {
				status = fmt.Sprintf("saved %d probes", field.Len())
				slog.Info("probes written", "path", *outPath, "count", field.Len())
			}
		}
		panelY += 55

		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		for _, line := range shapeYAML(params, center, extent) {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			var text string
			for _, line := range shapeYAML(params, center, extent) {
				text += line + "\n"
			}
			rl.SetClipboardText(text)
		}

		rl.EndDrawing()
	}
}

// slider draws a labelled slider row and reports whether the value moved.
func slider(x float32, y *float32, label, lo, hi string, value, min, max float32, format string) (float32, bool) {
	rl.DrawText(label, int32(x), int32(*y), 14, rl.Gray)
	*y += 18
	next := gui.SliderBar(
		rl.Rectangle{X: x, Y: *y, Width: float32(panelWidth - 80), Height: 20},
		lo, hi,
		value, min, max,
	)
	rl.DrawText(fmt.Sprintf(format, next), int32(x+float32(panelWidth-70)), int32(*y+2), 16, rl.DarkGray)
	*y += 35
	return next, next != value
}

// shapeYAML renders the current noise shape as an obstacles.shapes entry.
func shapeYAML(p NoiseParams, center, extent r3.Vec) []string {
	return []string{
		"obstacles:",
		fmt.Sprintf("  spacing: %.2f", p.Spacing),
		"  shapes:",
		"    - kind: noise",
		fmt.Sprintf("      center: [%g, %g, %g]", center.X, center.Y, center.Z),
		fmt.Sprintf("      size: [%g, %g, %g]", 2*extent.X, 2*extent.Y, 2*extent.Z),
		fmt.Sprintf("      scale: %.2f", p.Scale),
		fmt.Sprintf("      threshold: %.3f", p.Threshold),
		fmt.Sprintf("      seed: %d", p.Seed),
		"      layer: 1",
	}
}

// updateTexture colours the slice: solid where a probe would be placed,
// a dark gradient of the noise value elsewhere.
func updateTexture(texture rl.Texture2D, slice []float32, threshold float32) {
	pixels := make([]color.RGBA, len(slice))
	for i, v := range slice {
		if v > threshold {
			pixels[i] = color.RGBA{R: 230, G: 120, B: 90, A: 255}
			continue
		}
		t := v / threshold
		pixels[i] = color.RGBA{R: uint8(10 + t*40), G: uint8(20 + t*80), B: uint8(60 + t*120), A: 255}
	}
	rl.UpdateTexture(texture, pixels)
}
