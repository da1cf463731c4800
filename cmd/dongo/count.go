// Part of the dongo CLI - this file implements the 'dongo count' subcommand.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count <collection> [term=value ...]",
	Short: "Count matching documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	preds, err := parsePredicates(args[1:])
	if err != nil {
		return err
	}
	coll, drv, err := openCollection(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = drv.Close() }()

	n, err := coll.Filter(preds).Count(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}
