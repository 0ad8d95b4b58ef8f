// internal/prepare/geo.go
package prepare

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// LatLong is a geographic coordinate.
type LatLong struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// traitValues collects the known values of trait across the first segment.
func (r *Runner) traitValues(trait string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, rec := range r.segments[0].Records {
		v, ok := rec.Attr(trait)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Colors assigns colors to every configured color trait from the
// color-definition files (trait, value, hex per line).
func (r *Runner) Colors() error {
	defs := map[string]map[string]string{}
	for _, path := range r.cfg.ColorDefs {
		if err := readColorDefs(path, defs); err != nil {
			return err
		}
	}
	r.colors = make(map[string]map[string]string, len(r.cfg.Colors))
	for _, trait := range r.cfg.Colors {
		assigned := map[string]string{}
		for _, v := range r.traitValues(trait) {
			if hex, ok := defs[trait][v]; ok {
				assigned[v] = hex
			} else {
				r.log.Debug("no color defined", zap.String("trait", trait), zap.String("value", v))
			}
		}
		r.colors[trait] = assigned
	}
	return nil
}

func readColorDefs(path string, into map[string]map[string]string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()
	return scanTSV(fh, path, func(line int, cols []string) error {
		if len(cols) < 3 {
			return fmt.Errorf("%s:%d: want trait, value, color", path, line)
		}
		trait, value := cols[0], cols[1]
		if into[trait] == nil {
			into[trait] = map[string]string{}
		}
		into[trait][value] = cols[2]
		return nil
	})
}

// LatLongs attaches coordinates to the values of every configured lat/long
// trait from the lat/long definition file.
func (r *Runner) LatLongs() error {
	fh, err := os.Open(r.cfg.LatLongDefs)
	if err != nil {
		return err
	}
	defer fh.Close()
	coords, err := readLatLongs(fh, r.cfg.LatLongDefs)
	if err != nil {
		return err
	}
	r.latLongs = make(map[string]map[string]LatLong, len(r.cfg.LatLongs))
	for _, trait := range r.cfg.LatLongs {
		assigned := map[string]LatLong{}
		for _, v := range r.traitValues(trait) {
			if ll, ok := coords[v]; ok {
				assigned[v] = ll
			} else {
				r.log.Debug("no lat/long defined", zap.String("trait", trait), zap.String("value", v))
			}
		}
		r.latLongs[trait] = assigned
	}
	return nil
}

// readLatLongs accepts "location, latitude, longitude" or
// "location, country_code, latitude, longitude" rows; a header row is skipped.
func readLatLongs(rd io.Reader, src string) (map[string]LatLong, error) {
	out := map[string]LatLong{}
	err := scanTSV(rd, src, func(line int, cols []string) error {
		if len(cols) < 3 {
			return fmt.Errorf("%s:%d: want location and coordinates", src, line)
		}
		latCol := len(cols) - 2
		lat, errLat := strconv.ParseFloat(cols[latCol], 64)
		lon, errLon := strconv.ParseFloat(cols[latCol+1], 64)
		if errLat != nil || errLon != nil {
			if line == 1 {
				return nil // header
			}
			return fmt.Errorf("%s:%d: bad coordinates %q %q", src, line, cols[latCol], cols[latCol+1])
		}
		out[cols[0]] = LatLong{Latitude: lat, Longitude: lon}
		return nil
	})
	return out, err
}

func scanTSV(rd io.Reader, src string, row func(line int, cols []string) error) error {
	sc := bufio.NewScanner(rd)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}
		if err := row(line, cols); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	return nil
}
