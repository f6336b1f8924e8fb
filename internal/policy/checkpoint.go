package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// checkpointState is the on-disk representation of a trained policy: both
// networks' parameters plus the training cursor (ε, step count). Optimizer
// moment buffers are not persisted: a loaded network starts Adam's moments
// from zero.
type checkpointState struct {
	Policy  *network `json:"policy"`
	Target  *network `json:"target"`
	Epsilon float64  `json:"epsilon"`
	Steps   int64    `json:"steps"`
}

// layerDTO/networkDTO give layer/network a stable JSON shape without
// exporting their fields to the rest of the package (json.Marshal requires
// exported fields, so the DTOs live only at the checkpoint boundary).
type layerDTO struct {
	W [][]float64 `json:"w"`
	B []float64   `json:"b"`
}

type networkDTO struct {
	L1         layerDTO `json:"l1"`
	L2         layerDTO `json:"l2"`
	L3         layerDTO `json:"l3"`
	L4         layerDTO `json:"l4"`
	StateSize  int      `json:"state_size"`
	Hidden     int      `json:"hidden"`
	ActionSize int      `json:"action_size"`
}

func (l *layer) toDTO() layerDTO {
	return layerDTO{W: l.w, B: l.b}
}

func (n *network) MarshalJSON() ([]byte, error) {
	return json.Marshal(networkDTO{
		L1:         n.l1.toDTO(),
		L2:         n.l2.toDTO(),
		L3:         n.l3.toDTO(),
		L4:         n.l4.toDTO(),
		StateSize:  n.stateSize,
		Hidden:     n.hidden,
		ActionSize: n.actionSize,
	})
}

func (n *network) UnmarshalJSON(b []byte) error {
	var d networkDTO
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	n.stateSize, n.hidden, n.actionSize = d.StateSize, d.Hidden, d.ActionSize
	load := func(dto layerDTO) *layer {
		out := len(dto.W)
		l := &layer{
			w: dto.W, b: dto.B,
		}
		l.mw = make([][]float64, out)
		l.vw = make([][]float64, out)
		for i := range l.w {
			l.mw[i] = make([]float64, len(l.w[i]))
			l.vw[i] = make([]float64, len(l.w[i]))
		}
		l.mb = make([]float64, out)
		l.vb = make([]float64, out)
		return l
	}
	n.l1 = load(d.L1)
	n.l2 = load(d.L2)
	n.l3 = load(d.L3)
	n.l4 = load(d.L4)
	return nil
}

// checkpointer owns atomic read/write of the checkpoint file at path.
type checkpointer struct {
	path string
}

func newCheckpointer(path string) *checkpointer {
	return &checkpointer{path: path}
}

// save writes st to path atomically: write to a sibling temp file, then
// rename over the destination, so a crash mid-write never corrupts the
// last good checkpoint.
func (c *checkpointer) save(st checkpointState) error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("op=checkpointer.save: mkdir: %w", err)
	}
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("op=checkpointer.save: marshal: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("op=checkpointer.save: write: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("op=checkpointer.save: rename: %w", err)
	}
	return nil
}

// load reads a checkpoint from path. A missing file returns ok=false with
// no error. stateSize/hidden/actionSize seed the loaded networks' size
// fields; the values stored in the file overwrite them when present, and
// the Adam buffers are sized from the stored weights.
func (c *checkpointer) load(stateSize, hidden, actionSize int) (checkpointState, bool, error) {
	if c.path == "" {
		return checkpointState{}, false, nil
	}
	b, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return checkpointState{}, false, nil
		}
		return checkpointState{}, false, fmt.Errorf("op=checkpointer.load: read: %w", err)
	}
	st := checkpointState{
		Policy: &network{stateSize: stateSize, hidden: hidden, actionSize: actionSize},
		Target: &network{stateSize: stateSize, hidden: hidden, actionSize: actionSize},
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return checkpointState{}, false, fmt.Errorf("op=checkpointer.load: unmarshal: %w", err)
	}
	return st, true, nil
}
