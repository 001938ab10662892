package features

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Protocol activities recorded for every subject; everything else (including
// the transient activity 0) is discarded.
var Activities = []int{1, 2, 3, 4, 5, 6, 7, 12, 13, 16, 17, 24}

const (
	columnActivity = 1
	columnHand     = 4
	columnChest    = 21
	columnAnkle    = 38
	minColumns     = columnAnkle + 3
)

// Channels is the number of signals per row: x/y/z of the ±16g accelerometer
// on the hand, chest and ankle IMUs.
const Channels = 9

// Segment is a run of consecutive valid rows sharing one activity.
type Segment struct {
	Activity int
	Rows     [][Channels]float64
}

func isActivity(a int) bool {
	for _, v := range Activities {
		if v == a {
			return true
		}
	}
	return false
}

// ParseProtocol reads a PAMAP2 protocol file and splits it into segments. A
// segment ends on an activity change or on a row that has to be dropped.
func ParseProtocol(r io.Reader) ([]Segment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	segments := []Segment{}
	var current *Segment
	closeSegment := func() {
		if current != nil && len(current.Rows) > 0 {
			segments = append(segments, *current)
		}
		current = nil
	}

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < minColumns {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", line, minColumns, len(fields))
		}

		activity, err := strconv.ParseFloat(fields[columnActivity], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid activity %q: %v", line, fields[columnActivity], err)
		}
		a := int(activity)
		if !isActivity(a) {
			closeSegment()
			continue
		}

		var row [Channels]float64
		valid := true
		for i, column := range []int{columnHand, columnChest, columnAnkle} {
			for axis := range 3 {
				v, err := strconv.ParseFloat(fields[column+axis], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid value %q: %v", line, fields[column+axis], err)
				}
				if math.IsNaN(v) {
					valid = false
				}
				row[i*3+axis] = v
			}
		}
		if !valid {
			closeSegment()
			continue
		}

		if current != nil && current.Activity != a {
			closeSegment()
		}
		if current == nil {
			current = &Segment{Activity: a}
		}
		current.Rows = append(current.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	closeSegment()

	return segments, nil
}
