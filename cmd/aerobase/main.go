// Command-line entry point for the navigational reference-data service.
//
// Note about seed input
// ---------------------
// The seed command reads JSONL (one JSON object per line). Each line carries
// a "kind" field naming the record type plus the record fields themselves:
//
//	{"kind":"airport","id":"a-jfk","icao":"KJFK","name":"Kennedy","latitude":40.6413,"longitude":-73.7781}
//	{"kind":"waypoint","id":"MERIT","name":"MERIT","latitude":41.3817,"longitude":-73.1375,"type":"FIX"}
//
// The same record shapes are accepted over NATS by aerobase-api.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"aerobase/internal/flight"
	"aerobase/internal/geo"
	"aerobase/internal/nav"
	"aerobase/internal/navsync"
	"aerobase/internal/service"
	"aerobase/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "aerobase - commands:")
	fmt.Fprintln(w, "  seed    - import navdata records from a JSONL file")
	fmt.Fprintln(w, "  near    - find points within a radius of a coordinate")
	fmt.Fprintln(w, "  plan    - validate a flight plan and calculate its route")
	fmt.Fprintln(w, "  device  - show this machine's device registration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  aerobase seed -input navdata.jsonl [-db aerobase.db] [-stats]")
	fmt.Fprintln(w, "  aerobase near -lat 40.7 -lon -73.9 -radius 50 [-kind airport] [-db aerobase.db]")
	fmt.Fprintln(w, "  aerobase plan -from KJFK -to KLAX -alt 35000 -speed 500 [-via MERIT,KORD] [-fuel-flow 50]")
	fmt.Fprintln(w, "  aerobase device [-db aerobase.db]")
	fmt.Fprintln(w, "")
}

func main() {
	_ = godotenv.Load(".env")

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "seed":
		runSeed(os.Args[2:])
	case "near":
		runNear(os.Args[2:])
	case "plan":
		runPlan(os.Args[2:])
	case "device":
		runDevice(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func dbFlag(fs *flag.FlagSet) *string {
	return fs.String("db", envOrDefault("AEROBASE_DB", "aerobase.db"), "SQLite database path")
}

func openService(dbPath string) *service.Service {
	cfg := service.DefaultConfig()
	cfg.Storage.SQLitePath = dbPath

	svc, err := service.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	return svc
}

// noRefresh satisfies the sync refresher for offline seeding; the index is
// rebuilt when the database is next opened.
type noRefresh struct{}

func (noRefresh) Refresh(context.Context) error { return nil }

func runSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	inPath := fs.String("input", "", "Input JSONL file (default: stdin)")
	dbPath := dbFlag(fs)
	showStats := fs.Bool("stats", false, "Print per-kind counters to stderr")
	_ = fs.Parse(args)

	gw, err := storage.OpenSQLite(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer func() { _ = gw.Close() }()

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	// Seeding goes through the same record decoder the NATS subscriber
	// uses, so file and stream input stay in lockstep.
	sub := navsync.NewSubscriber(navsync.Config{RefreshDebounce: time.Hour}, gw, noRefresh{})
	defer sub.Stop()
	ctx := context.Background()

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 16*1024*1024)

	counts := make(map[string]int)
	var lines, skipped int

	for scanner.Scan() {
		lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var header struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal([]byte(line), &header); err != nil || header.Kind == "" {
			skipped++
			continue
		}

		if err := sub.Apply(ctx, "navdata."+header.Kind, []byte(line)); err != nil {
			fmt.Fprintf(os.Stderr, "line %d: %v\n", lines, err)
			skipped++
			continue
		}
		counts[header.Kind]++
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("Seeded %d records into %s\n", total, *dbPath)

	if *showStats {
		fmt.Fprintf(os.Stderr, "stats: lines=%d skipped=%d", lines, skipped)
		for kind, n := range counts {
			fmt.Fprintf(os.Stderr, " %s=%d", kind, n)
		}
		fmt.Fprintln(os.Stderr)
	}
}

func runNear(args []string) {
	fs := flag.NewFlagSet("near", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Center latitude in degrees")
	lon := fs.Float64("lon", 0, "Center longitude in degrees")
	radius := fs.Float64("radius", 50, "Radius in nautical miles")
	kind := fs.String("kind", "airport", "Point kind: airport, waypoint or navaid")
	dbPath := dbFlag(fs)
	_ = fs.Parse(args)

	svc := openService(*dbPath)
	defer func() { _ = svc.Close() }()

	ctx := context.Background()
	center := geo.Coordinate{Latitude: *lat, Longitude: *lon}

	var pts []nav.Point
	var err error
	switch nav.PointKind(*kind) {
	case nav.KindAirport:
		pts, err = svc.FindAirportsWithin(ctx, center, *radius)
	case nav.KindWaypoint:
		pts, err = svc.FindWaypointsWithin(ctx, center, *radius)
	case nav.KindNavaid:
		pts, err = svc.FindNavaidsWithin(ctx, center, *radius)
	default:
		fmt.Fprintf(os.Stderr, "Unknown kind: %s\n", *kind)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	if len(pts) == 0 {
		fmt.Printf("No %ss within %.1f nm of (%.4f, %.4f)\n", *kind, *radius, *lat, *lon)
		return
	}
	for _, p := range pts {
		fmt.Printf("%-8s %-30s %9.4f %10.4f  %6.1f nm\n",
			p.ID, p.Name, p.Coordinate.Latitude, p.Coordinate.Longitude,
			geo.Distance(center, p.Coordinate))
	}
}

func runPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	from := fs.String("from", "", "Departure airport ICAO")
	to := fs.String("to", "", "Destination airport ICAO")
	alternate := fs.String("alternate", "", "Alternate airport ICAO")
	alt := fs.Int("alt", 0, "Cruise altitude in feet")
	speed := fs.Int("speed", 0, "Cruise speed in knots")
	via := fs.String("via", "", "Comma-separated waypoint keys")
	fuelFlow := fs.Float64("fuel-flow", 0, "Fuel flow in gallons per hour (adds fuel estimate)")
	dbPath := dbFlag(fs)
	_ = fs.Parse(args)

	builder := flight.NewPlanBuilder().
		Departure(strings.ToUpper(*from)).
		Destination(strings.ToUpper(*to)).
		CruiseAltitude(*alt).
		CruiseSpeed(*speed)
	if *alternate != "" {
		builder.Alternate(strings.ToUpper(*alternate))
	}
	if *via != "" {
		for _, wp := range strings.Split(*via, ",") {
			builder.AddWaypoint(strings.ToUpper(strings.TrimSpace(wp)))
		}
	}
	plan, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid plan: %v\n", err)
		os.Exit(2)
	}

	svc := openService(*dbPath)
	defer func() { _ = svc.Close() }()
	ctx := context.Background()

	route, err := svc.CalculateRoute(ctx, plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Plan rejected: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s -> %s at %d ft, %d kt\n", plan.Departure, plan.Destination, plan.CruiseAltitude, plan.CruiseSpeed)
	for _, p := range route.Points {
		fmt.Printf("  %-8s %9.4f %10.4f  leg %7.1f nm  total %7.1f nm  %4d min\n",
			p.ID, p.Coordinate.Latitude, p.Coordinate.Longitude,
			p.LegDistanceNM, p.CumulativeNM, p.ElapsedMinutes)
	}
	fmt.Printf("Total: %.1f nm, %d minutes\n", route.TotalDistanceNM, route.EstimatedMinutes)

	if *fuelFlow > 0 {
		fuel, err := flight.Fuel(route, *fuelFlow)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fuel estimate: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Fuel: %.1f gal at %.1f gph (with reserve and taxi)\n", fuel, *fuelFlow)
	}
}

func runDevice(args []string) {
	fs := flag.NewFlagSet("device", flag.ExitOnError)
	dbPath := dbFlag(fs)
	showHardware := fs.Bool("hardware", false, "Print hardware info JSON")
	_ = fs.Parse(args)

	svc := openService(*dbPath)
	defer func() { _ = svc.Close() }()

	d, err := svc.DeviceFingerprint(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Device registration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Device ID:   %s\n", d.ID)
	fmt.Printf("Fingerprint: %s\n", d.Fingerprint)
	fmt.Printf("Registered:  %s\n", time.Unix(d.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Last seen:   %s\n", time.Unix(d.LastSeen, 0).UTC().Format(time.RFC3339))
	if *showHardware && d.HardwareInfo != nil {
		fmt.Println(*d.HardwareInfo)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
