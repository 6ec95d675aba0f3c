// Command irrigationctl is the operator-facing companion to
// irrigation-controller: it talks to the running daemon's status API for
// everyday job control, and falls back to touching the SQLite file
// directly for the one operation the daemon doesn't expose over HTTP
// (reseeding).
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/irrigation-controller/db"
	"github.com/thatsimonsguy/irrigation-controller/internal/config"
)

var apiAddr string

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "irrigationctl",
		Short: "Operate a running irrigation-controller daemon",
	}

	root.PersistentFlags().StringVar(&apiAddr, "addr", envOr("STATUS_ADDR", "127.0.0.1:8099"), "irrigation-controller status API address")

	root.AddCommand(buildStatusCommand())
	root.AddCommand(buildRunZoneCommand())
	root.AddCommand(buildStopPumpCommand())
	root.AddCommand(buildForceUnlockCommand())
	root.AddCommand(buildReseedCommand())

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func baseURL() string {
	return "http://" + apiAddr
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func buildStatusCommand() *cobra.Command {
	var pumpID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pump status, or one pump with --pump",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/status/pumps"
			if pumpID != "" {
				path = "/status/pumps/" + pumpID
			}
			resp, err := httpClient().Get(baseURL() + path)
			if err != nil {
				return fmt.Errorf("request status: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&pumpID, "pump", "", "Restrict to a single pump ID")
	return cmd
}

func buildRunZoneCommand() *cobra.Command {
	var zoneID string
	var durationSec int

	cmd := &cobra.Command{
		Use:   "run-zone",
		Short: "Manually run a zone for a fixed duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := json.Marshal(map[string]any{"zone_id": zoneID, "duration_sec": durationSec})
			if err != nil {
				return err
			}
			resp, err := httpClient().Post(baseURL()+"/manual/run-zone", "application/json", strings.NewReader(string(body)))
			if err != nil {
				return fmt.Errorf("submit run-zone: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&zoneID, "zone", "", "Zone ID to run")
	cmd.Flags().IntVar(&durationSec, "duration", 0, "Run duration in seconds")
	cmd.MarkFlagRequired("zone")
	cmd.MarkFlagRequired("duration")
	return cmd
}

func buildStopPumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop-pump [pump-id]",
		Short: "Cancel a pump's current job and clear its queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient().Post(baseURL()+"/manual/stop-pump/"+args[0], "application/json", nil)
			if err != nil {
				return fmt.Errorf("submit stop-pump: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
	return cmd
}

func buildForceUnlockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "force-unlock [pump-id]",
		Short: "Cancel a pump's job and drive its lock entity off directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient().Post(baseURL()+"/manual/force-unlock/"+args[0], "application/json", nil)
			if err != nil {
				return fmt.Errorf("submit force-unlock: %w", err)
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
	return cmd
}

func buildReseedCommand() *cobra.Command {
	var dbPath string
	var seedFile string

	cmd := &cobra.Command{
		Use:   "reseed",
		Short: "Re-apply a seed file directly against the SQLite database (daemon must be stopped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer conn.Close()

			spec := config.LoadSeed(seedFile)
			if err := db.SeedDatabase(conn, spec); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			fmt.Println("reseed complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", envOr("DATA_DIR", "data")+"/irrigation.db", "Path to the SQLite database file")
	cmd.Flags().StringVar(&seedFile, "seed", "", "Path to the YAML seed file")
	cmd.MarkFlagRequired("seed")
	return cmd
}

func printResponse(resp *http.Response) error {
	var pretty any
	if err := json.NewDecoder(resp.Body).Decode(&pretty); err == nil {
		enc, err := json.MarshalIndent(pretty, "", "  ")
		if err == nil {
			fmt.Println(string(enc))
		}
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
