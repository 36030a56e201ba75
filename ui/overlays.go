package ui

import (
	rl "github.com/gen2brain/raylib-go/raylib"
)

// OverlayID uniquely identifies an overlay.
type OverlayID string

// Standard overlay IDs.
const (
	OverlayBounds     OverlayID = "bounds"
	OverlayFloor      OverlayID = "floor"
	OverlayProbes     OverlayID = "probes"
	OverlayVoxelUsage OverlayID = "voxel_usage"
	OverlayHeadings   OverlayID = "headings"
	OverlayPerception OverlayID = "perception"
	OverlayPerf       OverlayID = "perf"
)

// OverlayDescriptor defines an overlay that can be toggled.
type OverlayDescriptor struct {
	ID          OverlayID   // Unique identifier
	Name        string      // Display name
	Description string      // What this overlay shows
	Key         int32       // Keyboard key to toggle (0 = no key)
	KeyLabel    string      // Key label for display (e.g., "S", "V")
	Category    string      // Grouping (e.g., "visual", "debug", "ai")
	Exclusive   []OverlayID // Other overlays to disable when this is enabled
}

// OverlayRegistry manages overlay state and metadata.
type OverlayRegistry struct {
	descriptors []OverlayDescriptor
	byID        map[OverlayID]OverlayDescriptor
	enabled     map[OverlayID]bool
}

// NewOverlayRegistry creates a registry with default overlays.
func NewOverlayRegistry() *OverlayRegistry {
	reg := &OverlayRegistry{
		byID:    make(map[OverlayID]OverlayDescriptor),
		enabled: make(map[OverlayID]bool),
	}
	reg.registerDefaults()
	return reg
}

// registerDefaults adds standard overlays.
func (r *OverlayRegistry) registerDefaults() {
	// Scene overlays
	r.Register(OverlayDescriptor{
		ID:          OverlayBounds,
		Name:        "Bounds",
		Description: "Outline the grid volume",
		Key:         rl.KeyB,
		KeyLabel:    "B",
		Category:    "scene",
	})

	r.Register(OverlayDescriptor{
		ID:          OverlayFloor,
		Name:        "Floor Grid",
		Description: "Voxel-spaced grid on the floor of the volume",
		Key:         rl.KeyF,
		KeyLabel:    "F",
		Category:    "scene",
	})

	r.Register(OverlayDescriptor{
		ID:          OverlayProbes,
		Name:        "Probes",
		Description: "Draw obstacle probe points coloured by layer",
		Key:         rl.KeyO,
		KeyLabel:    "O",
		Category:    "scene",
	})

	r.Register(OverlayDescriptor{
		ID:          OverlayVoxelUsage,
		Name:        "Voxel Usage",
		Description: "Outline occupied voxels by probe count",
		Key:         rl.KeyU,
		KeyLabel:    "U",
		Category:    "scene",
		Exclusive:   []OverlayID{OverlayFloor},
	})

	// Perception overlays
	r.Register(OverlayDescriptor{
		ID:          OverlayHeadings,
		Name:        "Flock Headings",
		Description: "Line along each agent's summed flockmate heading",
		Key:         rl.KeyH,
		KeyLabel:    "H",
		Category:    "perception",
	})

	r.Register(OverlayDescriptor{
		ID:          OverlayPerception,
		Name:        "Perception",
		Description: "Perception and avoidance spheres of the selected agent",
		Key:         rl.KeyV,
		KeyLabel:    "V",
		Category:    "perception",
	})

	// Debug overlays
	r.Register(OverlayDescriptor{
		ID:          OverlayPerf,
		Name:        "Step Timing",
		Description: "Per-phase step timing",
		Key:         rl.KeyT,
		KeyLabel:    "T",
		Category:    "debug",
	})
}

// Register adds an overlay to the registry.
func (r *OverlayRegistry) Register(desc OverlayDescriptor) {
	r.descriptors = append(r.descriptors, desc)
	r.byID[desc.ID] = desc
	r.enabled[desc.ID] = false
}

// Toggle switches an overlay on/off and handles exclusivity.
func (r *OverlayRegistry) Toggle(id OverlayID) bool {
	desc, ok := r.byID[id]
	if !ok {
		return false
	}

	newState := !r.enabled[id]
	r.enabled[id] = newState

	// If enabling, disable exclusive overlays
	if newState {
		for _, excl := range desc.Exclusive {
			r.enabled[excl] = false
		}
	}

	return newState
}

// SetEnabled explicitly sets an overlay's state.
func (r *OverlayRegistry) SetEnabled(id OverlayID, enabled bool) {
	desc, ok := r.byID[id]
	if !ok {
		return
	}

	r.enabled[id] = enabled

	// If enabling, disable exclusive overlays
	if enabled {
		for _, excl := range desc.Exclusive {
			r.enabled[excl] = false
		}
	}
}

// IsEnabled returns whether an overlay is active.
func (r *OverlayRegistry) IsEnabled(id OverlayID) bool {
	return r.enabled[id]
}

// Get returns an overlay descriptor by ID.
func (r *OverlayRegistry) Get(id OverlayID) (OverlayDescriptor, bool) {
	desc, ok := r.byID[id]
	return desc, ok
}

// ByCategory returns overlays filtered by category.
func (r *OverlayRegistry) ByCategory(category string) []OverlayDescriptor {
	var result []OverlayDescriptor
	for _, desc := range r.descriptors {
		if desc.Category == category {
			result = append(result, desc)
		}
	}
	return result
}

// Categories returns all unique categories in order.
func (r *OverlayRegistry) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, desc := range r.descriptors {
		if !seen[desc.Category] {
			seen[desc.Category] = true
			cats = append(cats, desc.Category)
		}
	}
	return cats
}

// HandleKeyPress checks if a key corresponds to an overlay toggle.
// Returns the overlay ID and new state if a toggle occurred.
func (r *OverlayRegistry) HandleKeyPress(key int32) (OverlayID, bool, bool) {
	for _, desc := range r.descriptors {
		if desc.Key == key {
			newState := r.Toggle(desc.ID)
			return desc.ID, newState, true
		}
	}
	return "", false, false
}
