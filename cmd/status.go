package cmd

import (
	"fmt"
	"poseidon/internal/dto"
	"poseidon/pkg/httpclient"
	"poseidon/pkg/utils"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the positions tracked by a running instance",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "base URL of the running API")
}

type trackedResponse struct {
	Code    int                      `json:"code"`
	Message string                   `json:"message"`
	Data    []dto.PositionTrackState `json:"data"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := httpclient.New(statusAddr, 10*time.Second)

	var out trackedResponse
	resp, err := client.Get(cmd.Context(), "/api/v1/tp", nil, nil, &out)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", statusAddr, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(resp.Body))
	}

	if len(out.Data) == 0 {
		cmd.Println("No positions are being tracked.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Symbol", "Side", "Policy", "Entry", "Last", "ROI %", "Max ROI %", "Size", "Steps", "Trail stop", "Exit"})
	for _, st := range out.Data {
		trail := "-"
		if st.TrailActive {
			trail = utils.FormatFloat(st.TrailStop)
		}
		exit := "-"
		if st.Exited {
			exit = string(st.ExitReason)
		}
		t.AppendRow(table.Row{
			st.Symbol, st.Side, st.Policy,
			utils.FormatFloat(st.EntryPrice), utils.FormatFloat(st.LastPrice),
			fmt.Sprintf("%.1f", st.LastRoi), fmt.Sprintf("%.1f", st.MaxRoi),
			fmt.Sprintf("%s/%s", utils.FormatFloat(st.Size), utils.FormatFloat(st.OriginalSize)),
			st.FiredSteps, trail, exit,
		})
	}
	t.Render()
	return nil
}
