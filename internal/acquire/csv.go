// Package acquire turns recordings and live sensor streams into pulse
// batches.
package acquire

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/pulse.report/internal/pulse"
	"github.com/banshee-data/pulse.report/internal/units"
)

// ErrNoSamples is returned when a recording holds no data rows.
var ErrNoSamples = errors.New("acquire: recording has no samples")

// ReadCSV parses `time,value` rows. A first row that does not parse as
// numbers is treated as a header. Extra columns are ignored. Values are
// multiplied by scale, which callers take from units.ScaleFactor; 0 means
// unscaled.
func ReadCSV(r io.Reader, scale float64) (pulse.Batch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var b pulse.Batch
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return pulse.Batch{}, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) < 2 {
			return pulse.Batch{}, fmt.Errorf("row %d: want at least 2 columns, got %d", row+1, len(rec))
		}
		t, v, err := parsePair(rec[0], rec[1])
		if err != nil {
			if row == 0 {
				continue
			}
			return pulse.Batch{}, fmt.Errorf("row %d: %w", row+1, err)
		}
		b.Times = append(b.Times, t)
		b.Values = append(b.Values, v)
	}
	if b.Len() == 0 {
		return pulse.Batch{}, ErrNoSamples
	}
	units.Scale(b.Values, unitScale(scale))
	return b, nil
}

// unitScale maps the zero scale of an unset option to 1.
func unitScale(scale float64) float64 {
	if scale == 0 {
		return 1
	}
	return scale
}

// ReadFile opens path and parses it with ReadCSV.
func ReadFile(path string, scale float64) (pulse.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return pulse.Batch{}, err
	}
	defer f.Close()

	b, err := ReadCSV(f, scale)
	if err != nil {
		return pulse.Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

func parsePair(ts, vs string) (float64, float64, error) {
	t, err := strconv.ParseFloat(strings.TrimSpace(ts), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad time %q: %w", ts, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(vs), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad value %q: %w", vs, err)
	}
	return t, v, nil
}
