package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/services/analytics"
)

func newScoreCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score prediction JSON read from --file or stdin",
		Long:  "score accepts one prediction object or an array of them and prints the enhanced signal for each.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				fh, err := os.Open(file)
				if err != nil {
					return err
				}
				defer fh.Close()
				r = fh
			}
			raw, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			preds, err := decodePredictions(raw)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analytics.ScoreAll(preds))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "prediction JSON file (- for stdin)")
	return cmd
}

func decodePredictions(raw []byte) ([]models.Prediction, error) {
	var many []models.Prediction
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one models.Prediction
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return []models.Prediction{one}, nil
}
