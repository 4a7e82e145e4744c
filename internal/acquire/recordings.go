package acquire

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// RecordingExt is the extension ListRecordings picks up.
const RecordingExt = ".csv"

// ParseCalibration reads the cuff pressures embedded in a recording name,
// e.g. "rest_SYS120_DIA80.csv" or "SYS118.5_DIA76.csv". The last "SYS"
// marker wins.
func ParseCalibration(filename string) (systolic, diastolic float64, ok bool) {
	base := filepath.Base(filename)
	i := strings.LastIndex(base, "SYS")
	if i < 0 {
		return 0, 0, false
	}
	rest := strings.TrimSuffix(base[i+len("SYS"):], filepath.Ext(base))
	sysText, diaText, found := strings.Cut(rest, "_DIA")
	if !found {
		return 0, 0, false
	}
	sys, err := strconv.ParseFloat(sysText, 64)
	if err != nil {
		return 0, 0, false
	}
	dia, err := strconv.ParseFloat(diaText, 64)
	if err != nil {
		return 0, 0, false
	}
	return sys, dia, true
}

// ListRecordings returns the recordings in dir in natural order, so
// "trial2" sorts before "trial10". Editor lock files starting with '$' or
// '~' are skipped.
func ListRecordings(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), RecordingExt) {
			continue
		}
		if strings.HasPrefix(name, "$") || strings.HasPrefix(name, "~") {
			continue
		}
		names = append(names, name)
	}
	slices.SortFunc(names, naturalCompare)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// naturalCompare orders strings chunk by chunk, comparing digit runs by
// numeric value and everything else case-insensitively.
func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		ca, ra := nextChunk(a)
		cb, rb := nextChunk(b)
		if c := compareChunk(ca, cb); c != 0 {
			return c
		}
		a, b = ra, rb
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	}
	return 1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func nextChunk(s string) (chunk, rest string) {
	digits := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], s[i:]
}

func compareChunk(a, b string) int {
	if isDigit(a[0]) && isDigit(b[0]) {
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(ta) != len(tb) {
			return len(ta) - len(tb)
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
		return len(a) - len(b)
	}
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
