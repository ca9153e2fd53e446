package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acclab/go-sdl-utils/logger"
	"github.com/acclab/go-sdl-utils/transfer"
)

var (
	flagDestDir string
	flagServe   bool
)

var recvCmd = &cobra.Command{
	Use:   "recv",
	Short: "Receive files from sending peers",
	Long: `Receive accepts one inbound transfer and stores the file in the
destination directory. With --serve it keeps accepting transfers, one
session per connection, until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fileCfg, err := loadFileConfig(flagConfig)
		if err != nil {
			return err
		}

		_, port, err := resolveEndpoint(fileCfg)
		if err != nil {
			return err
		}

		destDir := fileCfg.DestDir
		if flagDestDir != "" {
			destDir = flagDestDir
		}
		if destDir == "" {
			destDir = "."
		}

		opts, err := fileCfg.connOptions()
		if err != nil {
			return err
		}

		host := fileCfg.Host
		if flagHost != "" {
			host = flagHost
		}

		cfg, err := transfer.NewConnConfig(host, port, opts...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if flagServe {
			return transfer.Serve(ctx, cfg, destDir, func(result transfer.TransferResult) {
				if result.Completed() {
					logger.Info("file received", "file", result.FileName, "bytes", result.BytesTransferred)
				} else {
					logger.Error("transfer failed", "file", result.FileName, "stage", result.Stage, "error", result.Err)
				}
			})
		}

		result := transfer.ReceiveFile(ctx, cfg, destDir)
		if !result.Completed() {
			return fmt.Errorf("receive failed at stage %s: %w", result.Stage, result.Err)
		}

		logger.Info("file received", "file", result.FileName, "bytes", result.BytesTransferred)

		return nil
	},
}

func init() {
	recvCmd.Flags().StringVarP(&flagDestDir, "dest", "d", "", "destination directory for received files")
	recvCmd.Flags().BoolVar(&flagServe, "serve", false, "keep serving transfers until interrupted")
	rootCmd.AddCommand(recvCmd)
}
