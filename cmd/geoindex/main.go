// Command geoindex converts a world-cities CSV (city_ascii, country, iso3
// columns) into the compact (place_name, region_code, canonical_name)
// reference table the server loads at startup. City names are emitted
// before country names so resolution tries the more specific match first.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		input  string
		output string
	)

	flag.StringVar(&input, "input", "worldcities.csv", "world-cities CSV with city_ascii, country and iso3 columns")
	flag.StringVar(&output, "output", "data/regions.csv", "destination for the region reference table")
	flag.Parse()

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	reader := csv.NewReader(in)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	cols := map[string]int{}
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range []string{"city_ascii", "country", "iso3"} {
		if _, ok := cols[required]; !ok {
			return fmt.Errorf("input is missing required column %q", required)
		}
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)

	// Countries are collected while streaming city rows and appended after
	// them, deduplicated in first-seen order.
	type country struct {
		name string
		code string
	}
	var countries []country
	seen := map[string]bool{}
	var cities int

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}

		city := row[cols["city_ascii"]]
		name := row[cols["country"]]
		code := row[cols["iso3"]]
		if city == "" || code == "" {
			continue
		}

		if err := writer.Write([]string{city, code, name}); err != nil {
			return fmt.Errorf("write city row: %w", err)
		}
		cities++

		if name != "" && !seen[name] {
			seen[name] = true
			countries = append(countries, country{name: name, code: code})
		}
	}

	for _, c := range countries {
		if err := writer.Write([]string{c.name, c.code, c.name}); err != nil {
			return fmt.Errorf("write country row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	fmt.Printf("Wrote %d city names and %d country names to %s\n", cities, len(countries), output)
	return nil
}
