// Package ingestion loads daily bar and benchmark series from CSV files
// into the storage layer.
package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"portfolio-backtest-lab/internal/domain"
)

// ErrMissingColumn is returned when a required CSV column is absent.
var ErrMissingColumn = errors.New("missing required column")

// Required bar columns. Any further header column is stored as an
// indicator column; empty cells there read back as NaN.
var requiredBarColumns = []string{"date", "open", "high", "low", "close", "volume"}

// ParseBars reads daily bars from CSV. The header row is required and
// matched case-insensitively.
func ParseBars(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredBarColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var extras []string
	for name := range index {
		if !isRequiredBarColumn(name) {
			extras = append(extras, name)
		}
	}

	var bars []domain.Bar
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		date, err := time.Parse("2006-01-02", record[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: date: %w", line, err)
		}
		bar := domain.Bar{Date: domain.Day(date)}
		for _, field := range []struct {
			name string
			dst  *float64
		}{
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"volume", &bar.Volume},
		} {
			v, err := strconv.ParseFloat(record[index[field.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, field.name, err)
			}
			*field.dst = v
		}

		for _, name := range extras {
			cell := strings.TrimSpace(record[index[name]])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, name, err)
			}
			if bar.Columns == nil {
				bar.Columns = make(map[string]float64)
			}
			bar.Columns[name] = v
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// ParseBenchmark reads benchmark points from CSV with date,close columns.
func ParseBenchmark(r io.Reader) ([]domain.BenchmarkPoint, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range []string{"date", "close"} {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	var points []domain.BenchmarkPoint
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		date, err := time.Parse("2006-01-02", record[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: date: %w", line, err)
		}
		closePx, err := strconv.ParseFloat(record[index["close"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: close: %w", line, err)
		}
		points = append(points, domain.BenchmarkPoint{Date: domain.Day(date), Close: closePx})
	}
	return points, nil
}

func isRequiredBarColumn(name string) bool {
	for _, c := range requiredBarColumns {
		if name == c {
			return true
		}
	}
	return false
}
