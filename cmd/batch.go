package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchIDsFile string

var batchCmd = &cobra.Command{
	Use:   "batch [tender-id...]",
	Short: "Extract feature vectors for many tenders",
	Long:  "Extracts feature vectors for the given tender ids (or ids read from --ids-file, one per line). Failures are reported per tender and never abort the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids := args
		if batchIDsFile != "" {
			fileIDs, err := readIDsFile(batchIDsFile)
			if err != nil {
				return err
			}
			ids = append(ids, fileIDs...)
		}
		if len(ids) == 0 {
			return eris.New("no tender ids given")
		}

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Extractor.ExtractBatch(ctx, ids, batchConfig())
		if err != nil {
			return err
		}

		if env.Cache != nil {
			for _, vec := range res.Vectors {
				if vec == nil {
					continue
				}
				if err := env.Cache.Put(ctx, vec); err != nil {
					zap.L().Warn("vector cache write failed",
						zap.String("tender_id", vec.TenderID), zap.Error(err))
				}
			}
		}

		for _, ee := range res.Errors {
			zap.L().Error("extraction failed",
				zap.String("tender_id", ee.TenderID),
				zap.Error(ee.Err),
			)
		}
		if len(res.Errors) > 0 {
			return eris.Errorf("batch finished with %d failed tenders", len(res.Errors))
		}
		return nil
	},
}

func readIDsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open ids file %s", path)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read ids file %s", path)
	}
	return ids, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchIDsFile, "ids-file", "", "file with tender ids, one per line")
	rootCmd.AddCommand(batchCmd)
}
