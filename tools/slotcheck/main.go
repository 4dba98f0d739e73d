// Command slotcheck probes the booking service's gRPC availability surface
// and prints the free slots for one date. It drives the same calculation the
// public HTTP endpoints serve, so it doubles as a smoke check after deploys.
//
// The real client lives behind the protogen build tag; build with
// -tags protogen after generating the gRPC stubs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	var (
		addr      = flag.String("addr", getenv("GRPC_ADDR", "localhost:9090"), "booking service gRPC address")
		serviceID = flag.String("service-id", os.Getenv("SERVICE_ID"), "service to probe (mutually exclusive with -deal-id)")
		dealID    = flag.String("deal-id", os.Getenv("DEAL_ID"), "deal to probe")
		staffID   = flag.String("staff-id", os.Getenv("STAFF_ID"), "only count this staff member as free (services only)")
		date      = flag.String("date", time.Now().UTC().Format("2006-01-02"), "date to probe, YYYY-MM-DD")
		timeout   = flag.Duration("timeout", 10*time.Second, "overall timeout")
	)
	flag.Parse()

	if (*serviceID == "") == (*dealID == "") {
		fatal("exactly one of -service-id and -deal-id is required")
	}
	if *dealID != "" && *staffID != "" {
		fatal("-staff-id only applies to -service-id probes")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	err := probe(ctx, probeConfig{
		addr:      *addr,
		serviceID: *serviceID,
		dealID:    *dealID,
		staffID:   *staffID,
		date:      *date,
	})
	if err != nil {
		fatal(err.Error())
	}
}

type probeConfig struct {
	addr      string
	serviceID string
	dealID    string
	staffID   string
	date      string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "slotcheck:", msg)
	os.Exit(2)
}
