// Package vtkio serializes streamlines to the VTK legacy ASCII
// polydata format: one POINTS block, one LINES block referencing the
// points of each streamline in order, and optionally one POINT_DATA
// scalar block for per-point annotations.
package vtkio

import (
	"bufio"
	"fmt"
	"io"

	"github.com/banshee-data/fibertrack/internal/tracto"
)

// WriteStreamlines writes streamlines as VTK legacy polydata.
func WriteStreamlines(w io.Writer, streamlines []tracto.Streamline) error {
	return write(w, streamlines, nil)
}

// WriteStreamlinesWithScalars additionally writes one scalar per point,
// e.g. continuation probabilities. scalars must parallel streamlines in
// both outer and inner length.
func WriteStreamlinesWithScalars(w io.Writer, streamlines []tracto.Streamline, scalars [][]float64) error {
	if len(scalars) != len(streamlines) {
		return fmt.Errorf("scalar count %d does not match streamline count %d", len(scalars), len(streamlines))
	}
	for i := range scalars {
		if len(scalars[i]) != len(streamlines[i]) {
			return fmt.Errorf("streamline %d has %d points but %d scalars", i, len(streamlines[i]), len(scalars[i]))
		}
	}
	return write(w, streamlines, scalars)
}

func write(w io.Writer, streamlines []tracto.Streamline, scalars [][]float64) error {
	bw := bufio.NewWriter(w)

	totalPoints := 0
	for _, sl := range streamlines {
		totalPoints += len(sl)
	}

	fmt.Fprintln(bw, "# vtk DataFile Version 3.0")
	fmt.Fprintln(bw, "fibertrack streamlines")
	fmt.Fprintln(bw, "ASCII")
	fmt.Fprintln(bw, "DATASET POLYDATA")

	fmt.Fprintf(bw, "POINTS %d float\n", totalPoints)
	for _, sl := range streamlines {
		for _, p := range sl {
			fmt.Fprintf(bw, "%g %g %g\n", p.X, p.Y, p.Z)
		}
	}

	// Each line entry is: point count followed by that many point ids.
	fmt.Fprintf(bw, "LINES %d %d\n", len(streamlines), totalPoints+len(streamlines))
	offset := 0
	for _, sl := range streamlines {
		fmt.Fprintf(bw, "%d", len(sl))
		for j := range sl {
			fmt.Fprintf(bw, " %d", offset+j)
		}
		fmt.Fprintln(bw)
		offset += len(sl)
	}

	if scalars != nil {
		fmt.Fprintf(bw, "POINT_DATA %d\n", totalPoints)
		fmt.Fprintln(bw, "SCALARS probability float 1")
		fmt.Fprintln(bw, "LOOKUP_TABLE default")
		for _, row := range scalars {
			for _, v := range row {
				fmt.Fprintf(bw, "%g\n", v)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write vtk polydata: %w", err)
	}
	return nil
}
