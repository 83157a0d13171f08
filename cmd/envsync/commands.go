package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/envsync/envsync/envsync"
	"github.com/envsync/envsync/internal/config"
	"github.com/envsync/envsync/internal/logging"
	"github.com/envsync/envsync/internal/project"
	"github.com/envsync/envsync/internal/scan"
	"github.com/envsync/envsync/internal/state"
	"github.com/envsync/envsync/internal/validate"
)

func newRootCmd() *cobra.Command {
	var envFlag string

	root := &cobra.Command{
		Use:           "envsync",
		Short:         "Keep a local env file and a remote encrypted copy in sync",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&envFlag, "env", "e", "", "target environment (default from config)")

	root.AddCommand(
		newLoginCmd(),
		newPushCmd(&envFlag),
		newPullCmd(&envFlag),
		newSyncCmd(&envFlag),
		newDiffCmd(&envFlag),
		newStatusCmd(),
		newValidateCmd(&envFlag),
		newScanCmd(&envFlag),
	)

	return root
}

// session bundles everything a sync-facing command needs.
type session struct {
	cfg         *config.Config
	logger      *slog.Logger
	proj        *project.Project
	appState    *state.State
	file        *envsync.EnvFile
	cipher      *envsync.Cipher
	client      *envsync.Client
	environment string
}

func (s *session) close() {
	if s.appState != nil {
		s.appState.Close()
	}
}

// newSession loads config and project metadata and wires up the sync
// collaborators. remote controls whether a remote client (and therefore a
// token and API URL) is required.
func newSession(envFlag string, remote bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.AppEnv)
	if cfg.EnvFileWarning != "" {
		logger.Warn(cfg.EnvFileWarning)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}

	proj, err := project.Discover(cwd)
	if err != nil {
		return nil, err
	}

	environment := envFlag
	if environment == "" {
		environment = proj.DefaultEnvironment
	}
	if environment == "" {
		environment = cfg.Environment
	}

	filePath, err := proj.EnvFilePath(environment)
	if err != nil {
		return nil, err
	}

	file, err := envsync.NewEnvFile(filePath)
	if err != nil {
		return nil, err
	}

	appState, err := state.Load()
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	s := &session{
		cfg:         cfg,
		logger:      logger,
		proj:        proj,
		appState:    appState,
		file:        file,
		environment: environment,
	}

	key, err := envsync.DeriveKey(proj.Name)
	if err != nil {
		s.close()
		return nil, err
	}
	cipher, err := envsync.NewCipher(key)
	envsync.ZeroKey(key)
	if err != nil {
		s.close()
		return nil, err
	}
	s.cipher = cipher

	if remote {
		if cfg.APIURL == "" {
			s.close()
			return nil, fmt.Errorf("ENVSYNC_API_URL is required for remote operations")
		}

		token := cfg.Token
		if token == "" {
			token = appState.Token()
		}
		if token == "" {
			s.close()
			return nil, fmt.Errorf("no token configured: set ENVSYNC_TOKEN or run `envsync login`")
		}

		s.client = envsync.NewClient(cfg.APIURL, token, nil)
	}

	return s, nil
}

func (s *session) newSyncer(direction envsync.Direction) *envsync.Syncer {
	return envsync.NewSyncer(envsync.SyncerConfig{
		Store:        s.client,
		Cipher:       s.cipher,
		File:         s.file,
		State:        s.appState,
		Project:      s.proj.Name,
		Environment:  s.environment,
		Direction:    direction,
		Debounce:     s.cfg.Debounce,
		PollInterval: s.cfg.PollInterval,
	}, s.logger)
}

func newLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the remote store token for future commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}

			appState, err := state.Load()
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			defer appState.Close()

			if err := appState.SetToken(token); err != nil {
				return fmt.Errorf("storing token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "token stored")
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "remote store bearer token")

	return cmd
}

func newPushCmd(envFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Encrypt the local env file and replace the remote snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(*envFlag, true)
			if err != nil {
				return err
			}
			defer s.close()

			return s.newSyncer(envsync.DirectionPush).Run(cmd.Context())
		},
	}
}

func newPullCmd(envFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Fetch and decrypt the remote snapshot over the local env file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(*envFlag, true)
			if err != nil {
				return err
			}
			defer s.close()

			return s.newSyncer(envsync.DirectionPull).Run(cmd.Context())
		},
	}
}

func newSyncCmd(envFlag *string) *cobra.Command {
	var (
		watch        bool
		directionStr string
		pollInterval time.Duration
		debounce     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "One-shot push-then-pull, or continuous sync with --watch",
		RunE: func(cmd *cobra.Command, args []string) error {
			direction, err := envsync.ParseDirection(directionStr)
			if err != nil {
				return err
			}

			s, err := newSession(*envFlag, true)
			if err != nil {
				return err
			}
			defer s.close()

			if pollInterval > 0 {
				s.cfg.PollInterval = pollInterval
			}
			if debounce > 0 {
				s.cfg.Debounce = debounce
			}

			syncer := s.newSyncer(direction)
			if watch {
				return syncer.Watch(cmd.Context())
			}
			return syncer.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep syncing until interrupted")
	cmd.Flags().StringVar(&directionStr, "direction", string(envsync.DirectionBoth), "sync direction: push, pull, or both")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "remote poll interval (watch mode)")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "local change debounce window (watch mode)")

	return cmd
}

func newDiffCmd(envFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what a pull would change, without writing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(*envFlag, true)
			if err != nil {
				return err
			}
			defer s.close()

			records, found, err := s.client.PullSnapshot(cmd.Context(), s.proj.Name, s.environment)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "no remote snapshot")
				return nil
			}

			remote, err := envsync.DecryptSnapshot(s.cipher, records)
			if err != nil {
				return err
			}

			local, err := s.file.Snapshot()
			if err != nil {
				return err
			}

			cs := envsync.Diff(local, remote)
			fmt.Fprint(cmd.OutOrStdout(), envsync.RenderChangeSet(cs, local, remote))
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded sync for every project and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			appState, err := state.Load()
			if err != nil {
				return fmt.Errorf("loading state: %w", err)
			}
			defer appState.Close()

			cursors, err := appState.AllCursors()
			if err != nil {
				return fmt.Errorf("reading sync cursors: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(cursors) == 0 {
				fmt.Fprintln(out, "no syncs recorded")
				return nil
			}

			keys := make([]string, 0, len(cursors))
			for k := range cursors {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				sc := cursors[k]
				fmt.Fprintf(out, "%s\t%d records\tpushed %s\tpulled %s\n",
					k, sc.RecordCount, formatSyncTime(sc.PushedAt), formatSyncTime(sc.PulledAt))
			}
			return nil
		},
	}
}

func formatSyncTime(unix int64) string {
	if unix == 0 {
		return "never"
	}
	return time.Unix(unix, 0).Local().Format(time.RFC3339)
}

func newValidateCmd(envFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the local env file against the project's rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(*envFlag, false)
			if err != nil {
				return err
			}
			defer s.close()

			snap, err := s.file.Snapshot()
			if err != nil {
				return err
			}

			issues, err := validate.Check(snap, s.proj.Rules)
			if err != nil {
				return err
			}

			if len(issues) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}

			for _, issue := range issues {
				fmt.Fprintln(cmd.OutOrStdout(), issue)
			}
			return fmt.Errorf("%d validation issue(s)", len(issues))
		},
	}
}

func newScanCmd(envFlag *string) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find env-var references in source and compare with the env file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(*envFlag, false)
			if err != nil {
				return err
			}
			defer s.close()

			if root == "" {
				root = s.proj.Dir
			}

			refs, err := scan.Tree(root)
			if err != nil {
				return err
			}

			snap, err := s.file.Snapshot()
			if err != nil {
				return err
			}

			report := scan.Compare(refs, snap)

			out := cmd.OutOrStdout()
			if len(report.Missing) == 0 && len(report.Unused) == 0 {
				fmt.Fprintln(out, "ok")
				return nil
			}
			for _, key := range report.Missing {
				fmt.Fprintf(out, "missing  %s (referenced in %v)\n", key, report.Referenced[key])
			}
			for _, key := range report.Unused {
				fmt.Fprintf(out, "unused   %s\n", key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "directory to scan (default: project root)")

	return cmd
}
