package dataset

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/copyleftdev/aimbench/internal/problems"
)

// maxLineBytes bounds a single svmlight record.
const maxLineBytes = 16 << 20

// LoadSVMLight parses svmlight/libsvm records
//
//	<label> <index>:<value> ... [# comment]
//
// with 1-based feature indices. Blank lines and comment lines are skipped, as
// are qid tokens. The matrix has as many columns as the largest index seen.
func LoadSVMLight(r io.Reader) (*problems.CSR, []float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	b := problems.NewCSRBuilder()
	var labels []float64
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		label, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "svmlight: line %d: label", line)
		}

		idx := make([]int, 0, len(fields)-1)
		vals := make([]float64, 0, len(fields)-1)
		last := 0
		for _, tok := range fields[1:] {
			key, val, ok := strings.Cut(tok, ":")
			if !ok {
				return nil, nil, errors.Errorf("svmlight: line %d: malformed feature %q", line, tok)
			}
			if key == "qid" {
				continue
			}
			j, err := strconv.Atoi(key)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "svmlight: line %d: feature index", line)
			}
			if j < 1 {
				return nil, nil, errors.Errorf("svmlight: line %d: feature index %d is not 1-based", line, j)
			}
			if j <= last {
				return nil, nil, errors.Errorf("svmlight: line %d: feature indices must increase (%d after %d)", line, j, last)
			}
			last = j
			v, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "svmlight: line %d: feature %d", line, j)
			}
			idx = append(idx, j-1)
			vals = append(vals, v)
		}
		b.AddRow(idx, vals)
		labels = append(labels, label)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "svmlight: reading input")
	}
	if len(labels) == 0 {
		return nil, nil, errors.New("svmlight: no records")
	}

	a, err := b.Build(0)
	if err != nil {
		return nil, nil, errors.Wrap(err, "svmlight")
	}
	return a, labels, nil
}

// LoadSVMLightFile opens path and parses it with LoadSVMLight.
func LoadSVMLightFile(path string) (*problems.CSR, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "svmlight: open")
	}
	defer f.Close()

	a, labels, err := LoadSVMLight(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s", path)
	}
	return a, labels, nil
}

// BinarizeLabels maps label 1 to 1 and every other label to 0.
func BinarizeLabels(labels []float64) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		if l == 1 {
			out[i] = 1
		}
	}
	return out
}
