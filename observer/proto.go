// Package observer streams agent frames to websocket viewers.
package observer

import (
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pthm-cable/flock/systems"
)

// Version is the observer protocol version.
const Version = "1"

// Frame formats a subscriber may request.
const (
	FormatJSON   = "json"
	FormatBinary = "binary"
)

//go:embed subscribe.schema.json
var subscribeSchemaJSON string

var subscribeSchema = jsonschema.MustCompileString("subscribe.schema.json", subscribeSchemaJSON)

// SubscribeMsg is the first client message and may be re-sent to change
// settings.
type SubscribeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Format          string  `json:"format,omitempty"`
	MaxHz           float64 `json:"max_hz,omitempty"`
}

// parseSubscribe validates raw against the schema and decodes it.
func parseSubscribe(raw []byte) (SubscribeMsg, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return SubscribeMsg{}, fmt.Errorf("decoding subscribe: %w", err)
	}
	if err := subscribeSchema.Validate(doc); err != nil {
		return SubscribeMsg{}, fmt.Errorf("invalid subscribe: %w", err)
	}
	var sub SubscribeMsg
	if err := json.Unmarshal(raw, &sub); err != nil {
		return SubscribeMsg{}, fmt.Errorf("decoding subscribe: %w", err)
	}
	if sub.ProtocolVersion != Version {
		return SubscribeMsg{}, fmt.Errorf("unsupported protocol version %q", sub.ProtocolVersion)
	}
	return sub, nil
}

// normalizeSubscribe fills defaults and caps the rate at maxHz.
func normalizeSubscribe(sub *SubscribeMsg, maxHz float64) {
	if sub.Format == "" {
		sub.Format = FormatJSON
	}
	if sub.MaxHz <= 0 || sub.MaxHz > maxHz {
		sub.MaxHz = maxHz
	}
}

// BootstrapResponse is served by GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string     `json:"protocol_version"`
	RunID           string     `json:"run_id"`
	Tick            int32      `json:"tick"`
	Grid            GridParams `json:"grid"`
	Probes          int        `json:"probes"`
	// Usage holds the probe count of every voxel in grid index order.
	Usage []int32 `json:"usage"`
}

// GridParams describes the voxel volume.
type GridParams struct {
	Center     [3]float64 `json:"center"`
	Extent     [3]float64 `json:"extent"`
	VoxelSize  float64    `json:"voxel_size"`
	Resolution [3]int     `json:"resolution"`
}

// FrameMsg is one tick in JSON form. Each agent is
// [px, py, pz, fx, fy, fz, flockmates, obstacles].
type FrameMsg struct {
	Type   string       `json:"type"`
	Tick   int32        `json:"tick"`
	Time   float64      `json:"t"`
	Agents [][8]float32 `json:"agents"`
}

// frame is a published tick with a private copy of the records.
type frame struct {
	tick    int32
	time    float64
	records []systems.AgentRecord
}

func (f *frame) encodeJSON() ([]byte, error) {
	msg := FrameMsg{Type: "FRAME", Tick: f.tick, Time: f.time, Agents: make([][8]float32, len(f.records))}
	for i := range f.records {
		r := &f.records[i]
		msg.Agents[i] = [8]float32{
			float32(r.Position.X), float32(r.Position.Y), float32(r.Position.Z),
			float32(r.Direction.X), float32(r.Direction.Y), float32(r.Direction.Z),
			float32(r.Flockmates), float32(r.Obstacles),
		}
	}
	return json.Marshal(msg)
}

// binaryHeaderSize precedes the packed records: tick and agent count.
const binaryHeaderSize = 8

func (f *frame) encodeBinary() []byte {
	buf := make([]byte, binaryHeaderSize, binaryHeaderSize+len(f.records)*systems.AgentRecordStride)
	binary.LittleEndian.PutUint32(buf[0:], uint32(f.tick))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(f.records)))
	for i := range f.records {
		buf = systems.AppendRecord(buf, &f.records[i])
	}
	return buf
}

// DecodeBinaryFrame parses a binary frame into its tick and records.
func DecodeBinaryFrame(buf []byte) (int32, []systems.AgentRecord, error) {
	if len(buf) < binaryHeaderSize {
		return 0, nil, fmt.Errorf("frame of %d bytes is shorter than its header", len(buf))
	}
	tick := int32(binary.LittleEndian.Uint32(buf[0:]))
	n := int(binary.LittleEndian.Uint32(buf[4:]))
	records, err := systems.DecodeRecords(buf[binaryHeaderSize:])
	if err != nil {
		return 0, nil, err
	}
	if len(records) != n {
		return 0, nil, fmt.Errorf("frame header declares %d agents, body holds %d", n, len(records))
	}
	return tick, records, nil
}
