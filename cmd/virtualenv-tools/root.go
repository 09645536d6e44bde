package virtualenvtools

import (
	goerrors "errors"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/psolyca/virtualenv-tools/internal/version"
	"github.com/psolyca/virtualenv-tools/pkg/config"
	"github.com/psolyca/virtualenv-tools/pkg/errors"
	"github.com/psolyca/virtualenv-tools/pkg/filesystem"
	"github.com/psolyca/virtualenv-tools/pkg/logging"
	"github.com/psolyca/virtualenv-tools/pkg/registry"
	"github.com/psolyca/virtualenv-tools/pkg/relocate"
	"github.com/psolyca/virtualenv-tools/pkg/report"
	"github.com/psolyca/virtualenv-tools/pkg/venv"
)

// ErrReported marks a failure whose message already went to stdout as
// part of the output contract. The caller should exit non-zero without
// printing anything further.
var ErrReported = goerrors.New("error already reported")

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		updatePath    string
		basePythonDir string
		force         bool
		verbosity     int
	)

	rootCmd := &cobra.Command{
		Use:     "virtualenv-tools [path]",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Version: version.Version,
		Args:    cobra.MaximumNArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			envPath := "."
			if len(args) == 1 {
				envPath = args[0]
			}
			return run(cmd, runOptions{
				envPath:       envPath,
				updatePath:    updatePath,
				basePythonDir: basePythonDir,
				force:         force,
				verbose:       verbosity > 0,
			})
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVar(&updatePath, "update-path", "", MsgFlagUpdatePath)
	rootCmd.Flags().StringVar(&basePythonDir, "base-python-dir", "", MsgFlagBasePythonDir)
	rootCmd.Flags().BoolVar(&force, "force", false, MsgFlagForce)
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", MsgFlagVerbose)
	_ = rootCmd.MarkFlagRequired("update-path")

	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

type runOptions struct {
	envPath       string
	updatePath    string
	basePythonDir string
	force         bool
	verbose       bool
}

func run(cmd *cobra.Command, opts runOptions) error {
	out := cmd.OutOrStdout()
	logger := logging.GetLogger("cli")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	verbose := opts.verbose || cfg.Verbose

	updatePath := opts.updatePath
	fromRegistry := false
	if updatePath == autoSentinel {
		if updatePath, err = filepath.Abs(opts.envPath); err != nil {
			return errors.Wrapf(err, errors.ErrInvalidInput, "resolving %s", opts.envPath)
		}
	} else {
		updatePath, fromRegistry = registry.Resolve(updatePath, registry.Root(cfg.WorkonHome))
	}
	if !filepath.IsAbs(updatePath) {
		fmt.Fprintf(out, MsgUpdatePathNotAbsolute, updatePath)
		return ErrReported
	}
	updatePath = venv.RealPath(updatePath)

	basePythonDir := opts.basePythonDir
	if basePythonDir == autoSentinel {
		basePythonDir = ""
	}
	if basePythonDir != "" && !filepath.IsAbs(basePythonDir) {
		fmt.Fprintf(out, MsgBasePythonDirNotAbsolute, basePythonDir)
		return ErrReported
	}

	envPath := venv.RealPath(opts.envPath)
	if fromRegistry {
		envPath = updatePath
	}

	fsys := filesystem.NewOS()
	env, err := venv.Detect(fsys, envPath)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrNotVirtualenv) {
			fmt.Fprintln(out, errors.UserMessage(err))
			logger.Error().Err(err).Str("path", envPath).Msg("not a virtualenv")
			return ErrReported
		}
		return err
	}

	res, err := relocate.Run(fsys, env, relocate.Options{
		NewPath:       updatePath,
		BasePythonDir: basePythonDir,
		Force:         opts.force,
	}, report.New(out, verbose))
	if err != nil {
		return err
	}

	if res.State == relocate.StateUpToDate {
		fmt.Fprintf(out, MsgAlreadyUpToDate, env.Path, updatePath)
		return nil
	}
	fmt.Fprintf(out, MsgUpdated, env.Path, res.OrigPath, res.NewPath)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "virtualenv-tools version %s\n", version.Version)
		fmt.Fprintf(out, "  commit: %s\n", version.Commit)
		fmt.Fprintf(out, "  built:  %s\n", version.Date)
	},
}
