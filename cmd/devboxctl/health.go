package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	grpcAddr      string
	healthService string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the gRPC health service",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()

		resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: healthService})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp.GetStatus().String())
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			os.Exit(2)
		}
	},
}

func init() {
	healthCmd.Flags().StringVar(&grpcAddr, "grpc-addr", "localhost:9091", "devbox gRPC address")
	healthCmd.Flags().StringVar(&healthService, "service", "", "Service name (empty for overall health)")
	rootCmd.AddCommand(healthCmd)
}
