package scanfieldcal

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// readSemicolonTable returns the lines of path made of exactly numFields
// numbers separated (and optionally terminated) by ';'. Other lines, such as
// the header, are skipped.
func readSemicolonTable(path string, numFields int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		values, ok := parseSemicolonLine(scanner.Text(), numFields)
		if ok {
			rows = append(rows, values)
		}
	}
	return rows, scanner.Err()
}

func parseSemicolonLine(line string, numFields int) ([]float64, bool) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	if len(fields) != numFields {
		return nil, false
	}

	values := make([]float64, numFields)
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// writeSemicolonTable writes a header and rows, every field followed by ';'.
func writeSemicolonTable(path string, header []string, rows [][]float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	for _, h := range header {
		fmt.Fprintf(w, "%s;", h)
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for _, v := range row {
			w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			w.WriteByte(';')
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}
