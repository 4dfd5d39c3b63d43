package g1000

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultKeepColumns are the engine and fuel columns retained by Prune.
var DefaultKeepColumns = []string{
	"Lcl Date",
	"Lcl Time",
	"OAT",
	"AltMSL",
	"FQtyL",
	"FQtyR",
	"E1 FFlow",
	"E1 OilT",
	"E1 OilP",
	"E1 MAP",
	"E1 RPM",
	"E1 %Pwr",
	"E1 CHT1",
	"E1 CHT2",
	"E1 CHT3",
	"E1 CHT4",
	"E1 CHT5",
	"E1 CHT6",
	"E1 EGT1",
	"E1 EGT2",
	"E1 EGT3",
	"E1 EGT4",
	"E1 EGT5",
	"E1 EGT6",
	"E1 TIT1",
	"E1 TIT2",
	"volt1",
	"volt2",
	"amp1",
}

// Prune copies a flight log from r to w keeping only the listed columns.
// The airframe header is copied verbatim and rows with a field count that
// differs from the header are dropped.
func Prune(r io.Reader, w io.Writer, keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	bw := bufio.NewWriter(w)

	var units []string
	var fields []string
	var keepIdx []int

	for n := 0; scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch n {
		case 0:
			fmt.Fprintln(bw, line)
		case 1:
			units = splitTrim(line, " \t")
		case 2:
			fields = splitTrim(line, " \t")
			if len(units) != len(fields) {
				return &SchemaError{Units: len(units), Fields: len(fields)}
			}
			for i, f := range fields {
				if keepSet[f] {
					keepIdx = append(keepIdx, i)
				}
			}
			fmt.Fprintln(bw, strings.Join(pick(units, keepIdx), ","))
			fmt.Fprintln(bw, strings.Join(pick(fields, keepIdx), ","))
		default:
			row := splitTrim(line, " \t")
			if len(row) != len(fields) {
				continue
			}
			fmt.Fprintln(bw, strings.Join(pick(row, keepIdx), ","))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read flight log: %w", err)
	}
	return bw.Flush()
}

func pick(values []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}
