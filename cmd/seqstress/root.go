package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SEQSTRESS"

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "seqstress",
		Short: "Stress a sequence lock and check every read it validates",
		Long: `seqstress runs concurrent writers and readers against a sequence lock, either
in process or in a shared memory segment file, and fails if any validated read
observed a torn value or if the sequence counter does not account for every write.

Every flag can also be set from a SEQSTRESS_<FLAG> environment variable or from
the file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().String("config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(newRunCmd(v))
	return root
}

// loadConfig binds the command's flags to v, layering the environment and
// the optional config file underneath them.
func loadConfig(v *viper.Viper, cmd *cobra.Command) error {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.InheritedFlags()} {
		if err := v.BindPFlags(fs); err != nil {
			return errors.Wrap(err, "bind flags")
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", path)
		}
	}
	return nil
}

func newLogger(out io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", level)
	}
	return log.NewWithOptions(out, log.Options{
		Level:           lvl,
		Prefix:          "seqstress",
		ReportTimestamp: true,
	}), nil
}
