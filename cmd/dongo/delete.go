// Part of the dongo CLI - this file implements the 'dongo delete' subcommand.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <term=value> [term=value ...]",
	Short: "Delete matching documents",
	Long:  "Delete every document matching the filters. At least one filter is required; use an explicit tautology to wipe a collection.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	preds, err := parsePredicates(args[1:])
	if err != nil {
		return err
	}
	coll, drv, err := openCollection(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = drv.Close() }()

	res, err := coll.Filter(preds).Delete(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d\n", res.DeletedCount)
	return nil
}
