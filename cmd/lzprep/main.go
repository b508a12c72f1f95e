package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lzprep/lzprep/blockdev"
	"github.com/lzprep/lzprep/common"
	"github.com/lzprep/lzprep/lz4check"
	"github.com/lzprep/lzprep/probe"
	"github.com/lzprep/lzprep/provision"
	"github.com/lzprep/lzprep/script"
)

const (
	ctxConfig = iota
	ctxLogger
)

func withConfig(c *cobra.Command) runE {
	cfg, envErr := provision.ConfigFromEnv()

	c.Flags().StringVar(&cfg.LZ4Version, "lz4-version", cfg.LZ4Version, "pinned lz4 release to build")
	c.Flags().StringVar(&cfg.URLTemplate, "url-template", cfg.URLTemplate, "source archive url, {version} substituted")
	c.Flags().StringVar(&cfg.Prefix, "prefix", cfg.Prefix, "install prefix")
	c.Flags().IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "target fs block size (informational)")
	c.Flags().StringVar(&cfg.MountPoint, "mount", cfg.MountPoint, "mount point whose backing device runs the demo")
	c.Flags().StringVar(&cfg.ScriptPath, "script", cfg.ScriptPath, "where to write the generated demo script")
	c.Flags().StringVar(&cfg.DropInDir, "dropin-dir", cfg.DropInDir, "drop-in environment directory")
	c.Flags().StringVar(&cfg.LegacyFile, "legacy-env", cfg.LegacyFile, "legacy global environment file")
	c.Flags().StringVar(&cfg.ScratchDir, "scratch", cfg.ScratchDir, "scratch directory for the source build")
	c.Flags().BoolVar(&cfg.VerifyFrame, "verify-frame", cfg.VerifyFrame, "decode the demo output as an integrity check")

	return func(c *cobra.Command, args []string) error {
		if envErr != nil {
			return fmt.Errorf("environment config: %w", envErr)
		}
		c.SetContext(context.WithValue(c.Context(), ctxConfig, cfg))
		return nil
	}
}

func withLogger(c *cobra.Command) runE {
	noSyslog := c.Flags().Bool("no-syslog", false, "log to stdout only")
	return func(c *cobra.Command, args []string) error {
		lg := common.NewLogger("lzprep", !*noSyslog)
		c.SetContext(context.WithValue(c.Context(), ctxLogger, lg))
		return nil
	}
}

func getLogger(c *cobra.Command) *zap.SugaredLogger {
	return c.Context().Value(ctxLogger).(*zap.SugaredLogger)
}

func getConfig(c *cobra.Command) provision.Config {
	return c.Context().Value(ctxConfig).(provision.Config)
}

func main() {
	root := cmd(
		&cobra.Command{
			Use:           "lzprep",
			Short:         "lzprep - provision a linux host for lz4 compression demos",
			SilenceUsage:  true,
			SilenceErrors: true,
		},
		cmd(
			&cobra.Command{Use: "provision", Short: "run the full provisioning sequence"},
			withLogger, withConfig,
			func(c *cobra.Command, args []string) error {
				lg := getLogger(c)
				err := provision.New(getConfig(c), common.NewRunner(), lg).Run(c.Context())
				if err != nil {
					lg.Errorf("provisioning failed: %v", err)
				}
				return err
			},
		),
		cmd(
			&cobra.Command{Use: "probe", Short: "detect os and package manager"},
			withLogger,
			func(c *cobra.Command, args []string) error {
				p, err := probe.Detect(probe.OSReleasePath, nil)
				if err != nil {
					return err
				}
				getLogger(c).Infof("detected %s, package manager %s", p.OSName, p.PkgManager)
				return nil
			},
		),
		cmd(
			&cobra.Command{Use: "devices", Short: "print the block device inventory"},
			func(c *cobra.Command, args []string) error {
				devs, err := blockdev.List(c.Context(), common.NewRunner())
				if err != nil {
					return err
				}
				fmt.Print(blockdev.Inventory(devs))
				return nil
			},
		),
		cmd(
			&cobra.Command{Use: "script", Short: "write the demo script without provisioning"},
			withLogger, withConfig,
			func(c *cobra.Command, args []string) error {
				cfg := getConfig(c)
				err := script.Generate(cfg.ScriptPath, script.Params{
					Prefix:      cfg.Prefix,
					BlockSize:   cfg.BlockSize,
					WorkDir:     cfg.WorkDir(),
					TestFileMiB: 100,
				})
				if err != nil {
					return err
				}
				getLogger(c).Infof("wrote demo script %s", cfg.ScriptPath)
				return nil
			},
		),
		cmd(
			&cobra.Command{
				Use:   "verify <file.lz4>",
				Short: "integrity-check an lz4 frame file",
				Args:  cobra.ExactArgs(1),
			},
			func(c *cobra.Command, args []string) error {
				n, err := lz4check.Verify(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s: valid lz4 frame, %d bytes uncompressed\n", args[0], n)
				return nil
			},
		),
		cmd(
			&cobra.Command{Use: "version", Short: "print version"},
			func(c *cobra.Command, args []string) error {
				fmt.Println(common.Version)
				return nil
			},
		),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(common.ExitCode(err))
	}
}
