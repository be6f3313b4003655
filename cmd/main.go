package main

import (
	"os"

	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "auctionEngine",
		Short:         "Auction lots marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func main() {
	defer func() { _ = log.Sync() }()

	if err := newRootCommand().Execute(); err != nil {
		log.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
