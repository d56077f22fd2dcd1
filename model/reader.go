package model

import (
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FieldReader is just a simple reader for basic file formats.
type FieldReader struct {
	Pos    int
	Fields []string
}

// NewFieldReader constructs a new field reader around the given data
func NewFieldReader(data string) *FieldReader {
	return &FieldReader{0, strings.Fields(data)}
}

// Read returns the next space-delimited field/token
func (fr *FieldReader) Read() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	p := fr.Pos
	fr.Pos++
	return fr.Fields[p], nil
}

// ReadFloat reads the next token as a float
func (fr *FieldReader) ReadFloat() (float64, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(s, 64)
}

// Remaining is the number of unread fields
func (fr *FieldReader) Remaining() int {
	return len(fr.Fields) - fr.Pos
}

// ReadPoints parses whitespace separated coordinates into dim-dimensional
// points. Line breaks carry no meaning: the field count must be a multiple
// of dim.
func ReadPoints(data string, dim int) ([][]float64, error) {
	if dim < 1 {
		return nil, errors.Errorf("Invalid point dimension %d", dim)
	}

	fr := NewFieldReader(data)
	if fr.Remaining()%dim != 0 {
		return nil, errors.Errorf("Found %d values which is not a multiple of dim %d", fr.Remaining(), dim)
	}

	points := make([][]float64, 0, fr.Remaining()/dim)
	for fr.Remaining() > 0 {
		x := make([]float64, dim)
		for i := range x {
			v, err := fr.ReadFloat()
			if err != nil {
				return nil, errors.Wrapf(err, "Bad coordinate %d of point %d", i, len(points))
			}
			x[i] = v
		}
		points = append(points, x)
	}

	return points, nil
}

// ReadPointsFile reads points from the named file
func ReadPointsFile(filename string, dim int) ([][]float64, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ points from %s", filename)
	}

	points, err := ReadPoints(string(data), dim)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE points in %s", filename)
	}

	return points, nil
}
