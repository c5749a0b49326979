package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CreditWorthy/seqlock/internal/stress"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one stress round",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(v, cmd); err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"))
			if err != nil {
				return err
			}

			cfg := stress.Config{
				Writers:  v.GetInt("writers"),
				Readers:  v.GetInt("readers"),
				Duration: v.GetDuration("duration"),
				Target:   stress.Target(v.GetString("target")),
				Path:     v.GetString("path"),
				Words:    v.GetInt("words"),
			}
			rep, err := stress.Run(cmd.Context(), cfg, logger)
			fmt.Fprintf(cmd.OutOrStdout(),
				"writes=%d reads=%d retries=%d try_misses=%d violations=%d sequence=%d elapsed=%s\n",
				rep.Writes, rep.Reads, rep.Retries, rep.TryMisses, rep.Violations, rep.Sequence,
				rep.Elapsed.Round(time.Millisecond))
			return err
		},
	}

	f := cmd.Flags()
	f.Int("writers", 2, "number of writer goroutines")
	f.Int("readers", 4, "number of reader goroutines")
	f.Duration("duration", 2*time.Second, "how long to run")
	f.String("target", string(stress.TargetMem), "lock under test: mem or shm")
	f.String("path", "", "segment file for --target=shm (must not exist)")
	f.Int("words", 16, "payload size in 64-bit words")
	return cmd
}
