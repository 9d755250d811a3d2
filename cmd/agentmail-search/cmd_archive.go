package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agentmail-search/internal/archive"
	"agentmail-search/internal/store"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Reconstruct the relational store from the on-disk Git archive",
}

var archiveReconstructCmd = &cobra.Command{
	Use:   "reconstruct [storage-root]",
	Short: "Walk a storage root's projects/agents/messages archive into the database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArchiveReconstruct,
}

func init() {
	archiveCmd.AddCommand(archiveReconstructCmd)
}

func runArchiveReconstruct(cmd *cobra.Command, args []string) error {
	root := cfg.Storage.ReconstructDir
	if len(args) == 1 {
		root = args[0]
	}

	db, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := archive.Reconstruct(db, root)
	if err != nil {
		return err
	}
	fmt.Println(stats.String())
	return nil
}
