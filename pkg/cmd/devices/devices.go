package devices

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openbiotel/biotel-monitor-go/pkg/cmd/common"
	"github.com/openbiotel/biotel-monitor-go/pkg/telemetry"
)

func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "commands for the monitored devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context())
		},
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSetPatientCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "lists the registered devices and their patient linkage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context())
		},
	}
}

func newSetPatientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-patient <deviceId> <patientId>",
		Short: "links a device to a patient (admin only)",
		Args:  cobra.ExactArgs(2), //nolint:mnd // device id and patient id
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetPatient(cmd.Context(), args[0], args[1])
		},
	}
}

func runList(ctx context.Context) error {
	common.InitLogger()
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	if err := pipeline.LoadDevices(ctx); err != nil {
		return err
	}
	snap := pipeline.Snapshot()
	if len(snap.Devices) == 0 {
		fmt.Println("No devices registered.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tTHING\tPATIENT ID\tPATIENT NAME")
	for _, d := range snap.Devices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			d.DeviceID, d.ThingName, d.PatientID, d.PatientName)
	}
	return w.Flush()
}

func runSetPatient(ctx context.Context, deviceID, patientID string) error {
	common.InitLogger()
	pipeline, err := newPipeline(ctx)
	if err != nil {
		return err
	}
	if err := pipeline.UpdatePatientLink(ctx, deviceID, patientID); err != nil {
		return err
	}
	fmt.Printf("Device %s linked to patient %s.\n", deviceID, patientID)
	return nil
}

func newPipeline(ctx context.Context) (*telemetry.Pipeline, error) {
	session, err := common.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return telemetry.NewPipeline(
		common.NewAPIClient(session),
		telemetry.WithRoleSource(session),
	), nil
}
