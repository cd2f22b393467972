// Package volio reads and writes volumes in a simple two-file layout:
// a JSON header describing dimensions, channel count and the affine,
// next to a raw little-endian float32 grid in x-major order. The
// format exists so volumes exported from training pipelines can be
// loaded without a full neuroimaging dependency.
package volio

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/fibertrack/internal/tracto"
)

// Header is the JSON sidecar for a raw volume file.
type Header struct {
	NX       int         `json:"nx"`
	NY       int         `json:"ny"`
	NZ       int         `json:"nz"`
	Channels int         `json:"channels"`
	Affine   [16]float64 `json:"affine"`
}

// LoadVolume reads a volume given the path of its JSON header. The raw
// grid is expected next to it with the extension replaced by .raw.
func LoadVolume(headerPath string) (*tracto.Volume, error) {
	hb, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("read volume header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return nil, fmt.Errorf("parse volume header %s: %w", headerPath, err)
	}

	f, err := os.Open(rawPath(headerPath))
	if err != nil {
		return nil, fmt.Errorf("open volume grid: %w", err)
	}
	defer f.Close()

	data, err := readGrid(f, h)
	if err != nil {
		return nil, fmt.Errorf("read volume grid %s: %w", rawPath(headerPath), err)
	}
	return tracto.NewVolume(h.NX, h.NY, h.NZ, h.Channels, data, h.Affine)
}

// SaveVolume writes the header JSON at headerPath and the grid next to
// it as little-endian float32.
func SaveVolume(headerPath string, vol *tracto.Volume) error {
	h := Header{
		NX:       vol.NX,
		NY:       vol.NY,
		NZ:       vol.NZ,
		Channels: vol.Channels,
		Affine:   vol.Affine,
	}
	hb, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("encode volume header: %w", err)
	}
	if err := os.WriteFile(headerPath, append(hb, '\n'), 0o644); err != nil {
		return fmt.Errorf("write volume header: %w", err)
	}

	buf := make([]byte, len(vol.Data)*4)
	for i, v := range vol.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	if err := os.WriteFile(rawPath(headerPath), buf, 0o644); err != nil {
		return fmt.Errorf("write volume grid: %w", err)
	}
	return nil
}

// LoadMask reads a volume header+grid pair and converts it to a mask.
// Any channel 0 value above 0.5 marks the voxel as inside.
func LoadMask(headerPath string) (*tracto.Mask, error) {
	vol, err := LoadVolume(headerPath)
	if err != nil {
		return nil, err
	}
	data := make([]uint8, vol.NX*vol.NY*vol.NZ)
	for i := range data {
		if vol.Data[i*vol.Channels] > 0.5 {
			data[i] = 1
		}
	}
	return tracto.NewMask(vol, data)
}

func rawPath(headerPath string) string {
	ext := filepath.Ext(headerPath)
	return strings.TrimSuffix(headerPath, ext) + ".raw"
}

func readGrid(r io.Reader, h Header) ([]float64, error) {
	n := h.NX * h.NY * h.NZ * h.Channels
	if n <= 0 {
		return nil, fmt.Errorf("header declares empty grid %dx%dx%dx%d", h.NX, h.NY, h.NZ, h.Channels)
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(buf) != n*4 {
		return nil, fmt.Errorf("grid is %d bytes, header expects %d", len(buf), n*4)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return data, nil
}
