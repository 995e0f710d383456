package store

import (
	"encoding/binary"
	"math"

	"wheelermem/pkg/memory/brick"
)

func brickOf(opts StoreOptions) brick.Brick {
	return brick.Brick{
		History:   opts.History,
		Attractor: opts.Attractor,
		Verdict:   opts.Verdict,
		Ticks:     opts.Ticks,
		Metadata: map[string]interface{}{
			"frame_mode":        opts.FrameMode,
			"attempts":          opts.Attempts,
			"wall_time_seconds": opts.WallTimeSeconds,
		},
	}
}

func saveBrick(path string, b brick.Brick) error {
	return brick.Save(path, b)
}

// LoadBrick loads the full evolution record for id within chunkName.
func (s *Store) LoadBrick(chunkName, id string) (brick.Brick, error) {
	return brick.Load(s.brickPath(chunkName, id))
}

func putFloat32(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func getFloat32(buf []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf))
}
