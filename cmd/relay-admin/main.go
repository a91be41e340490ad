package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"liveview/relay/internal/admin"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "Admin gRPC address")
	timeout := flag.Duration("timeout", 5*time.Second, "Timeout for both calls")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("dial admin: %v", err)
	}
	defer conn.Close()

	hc, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: admin.ServiceName})
	if err != nil {
		log.Fatalf("health: %v", err)
	}
	fmt.Printf("health: %s\n", hc.GetStatus())

	st, err := admin.FetchStats(ctx, conn)
	if err != nil {
		log.Fatalf("stats: %v", err)
	}
	out, _ := json.MarshalIndent(st.AsMap(), "", "  ")
	fmt.Println(string(out))

	if hc.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		os.Exit(1)
	}
}
