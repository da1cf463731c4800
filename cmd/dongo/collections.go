// Part of the dongo CLI - this file implements the 'dongo collections' subcommand.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List the namespaces in the snapshot with document counts",
	Args:  cobra.NoArgs,
	RunE:  runCollections,
}

func runCollections(cmd *cobra.Command, args []string) error {
	_, drv, err := openClient()
	if err != nil {
		return err
	}
	defer func() { _ = drv.Close() }()

	stats := drv.Stats()
	if len(stats) == 0 {
		fmt.Println("empty snapshot")
		return nil
	}
	for _, stat := range stats {
		fmt.Printf("%s\t%d\n", stat.Namespace, stat.Documents)
	}
	return nil
}
