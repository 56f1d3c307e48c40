// Package feed loads historical price files for replay runs. Files are CSV
// rows of time,instrument,bid,ask; a .xz suffix is decompressed on the fly.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/rustyeddy/pairtrader/market"
)

// ReadTicks parses a whole tick file into memory. A header row is detected
// and skipped; rows must carry time,instrument,bid,ask.
func ReadTicks(path string) ([]market.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tick file: %w", err)
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		rd = xr
	}

	cr := csv.NewReader(rd)
	cr.TrimLeadingSpace = true

	var out []market.Tick
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line+1, err)
		}
		line++
		if len(row) < 4 {
			return nil, fmt.Errorf("%s line %d: want time,instrument,bid,ask", path, line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time") {
			continue
		}

		t, err := parseTime(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		bid, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad bid: %w", path, line, err)
		}
		ask, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad ask: %w", path, line, err)
		}

		out = append(out, market.Tick{
			Instrument: strings.TrimSpace(row[1]),
			Bid:        bid,
			Ask:        ask,
			Time:       t,
		})
	}
	return out, nil
}

// Sessions groups ticks by timestamp, ascending, so the tick loop can advance
// once per distinct market time with all instruments updated together.
func Sessions(ticks []market.Tick) [][]market.Tick {
	sorted := make([]market.Tick, len(ticks))
	copy(sorted, ticks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var out [][]market.Tick
	for _, t := range sorted {
		n := len(out)
		if n > 0 && out[n-1][0].Time.Equal(t.Time) {
			out[n-1] = append(out[n-1], t)
			continue
		}
		out = append(out, []market.Tick{t})
	}
	return out
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}
