package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acclab/go-sdl-utils/logger"
	"github.com/acclab/go-sdl-utils/transfer"
)

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Send one file to a receiving peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileCfg, err := loadFileConfig(flagConfig)
		if err != nil {
			return err
		}

		host, port, err := resolveEndpoint(fileCfg)
		if err != nil {
			return err
		}
		if host == "" {
			return fmt.Errorf("no host configured; pass --host or set it in the config file")
		}

		opts, err := fileCfg.connOptions()
		if err != nil {
			return err
		}

		cfg, err := transfer.NewConnConfig(host, port, opts...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result := transfer.SendFile(ctx, cfg, args[0])
		if !result.Completed() {
			return fmt.Errorf("send %s failed at stage %s: %w", args[0], result.Stage, result.Err)
		}

		logger.Info("file sent", "file", result.FileName, "bytes", result.BytesTransferred)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
