package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openbiotel/biotel-monitor-go/log"
	"github.com/openbiotel/biotel-monitor-go/pkg/cmd/common"
	"github.com/openbiotel/biotel-monitor-go/pkg/config"
	"github.com/openbiotel/biotel-monitor-go/pkg/telemetry"
)

var deviceID string

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "polls a device and prints its vitals until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&deviceID, "device",
		"",
		"device id to watch (default: first registered device)")
	cmd.Flags().StringVar(&config.PollInterval, "poll-interval",
		telemetry.DefaultPollInterval.String(),
		"measurement poll cadence")
	cmd.Flags().StringVar(&config.RetentionSpan, "retention",
		telemetry.DefaultRetentionSpan.String(),
		"span of the in-memory measurement window")
	cmd.Flags().StringVar(&config.DisplaySpan, "display-span",
		telemetry.DefaultDisplaySpan.String(),
		"span of the scrub display window")
	cmd.Flags().StringVar(&config.ChunkDuration, "chunk-duration",
		telemetry.DefaultChunkDuration.String(),
		"duration covered by one waveform chunk")
	cmd.Flags().IntVar(&config.MeasurementLimit, "limit",
		telemetry.DefaultLimit,
		"page size cap for the measurement endpoint")
	return cmd
}

func parseDuration(value string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func runWatch(ctx context.Context) error {
	common.InitLogger()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// full session with provider endpoints, so expired access tokens get
	// refreshed between poll ticks instead of failing every request
	session, err := common.NewSession(ctx)
	if err != nil {
		return err
	}
	if !session.IsSignedIn() {
		fmt.Println("Signed out. Run 'btm login' first.")
		return nil
	}

	pipeline := telemetry.NewPipeline(
		common.NewAPIClient(session),
		telemetry.WithRoleSource(session),
		telemetry.WithDeviceID(deviceID),
		telemetry.WithPollInterval(
			parseDuration(config.PollInterval, telemetry.DefaultPollInterval)),
		telemetry.WithRetentionSpan(
			parseDuration(config.RetentionSpan, telemetry.DefaultRetentionSpan)),
		telemetry.WithDisplaySpan(
			parseDuration(config.DisplaySpan, telemetry.DefaultDisplaySpan)),
		telemetry.WithChunkDuration(
			parseDuration(config.ChunkDuration, telemetry.DefaultChunkDuration)),
		telemetry.WithMeasurementLimit(config.MeasurementLimit),
		telemetry.WithOnUpdate(printVitals),
	)

	if err := pipeline.LoadDevices(ctx); err != nil {
		return err
	}
	selected := pipeline.SelectedDeviceID()
	if selected == "" {
		fmt.Println("No devices registered.")
		return nil
	}
	log.Info("watching device", log.String("device", selected))

	if err := pipeline.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printVitals(snap telemetry.Snapshot) {
	if !snap.KPIs.Valid {
		fmt.Printf("%s  no data in window\n", time.Now().Format(time.TimeOnly))
		return
	}
	k := snap.KPIs
	line := fmt.Sprintf("%s  hr=%.0f bpm  eda=%.2f",
		time.UnixMilli(k.TS).Format(time.TimeOnly), k.HeartRate, k.EDA)
	if k.HasSpO2 {
		line += fmt.Sprintf("  spo2=%.0f%%", k.SpO2)
	}
	if k.HasLeadOff && k.LeadOff {
		line += "  LEAD OFF"
	}
	line += fmt.Sprintf("  ecg=%d samples", len(snap.VisibleECG()))
	fmt.Println(line)
}
