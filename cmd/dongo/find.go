// Part of the dongo CLI - this file implements the 'dongo find' subcommand.
package main

import (
	"github.com/spf13/cobra"

	"github.com/dongo-odm/dongo/dongo/driver"
)

var (
	findSort  string
	findDesc  bool
	findLimit int64
	findSkip  int64
)

var findCmd = &cobra.Command{
	Use:   "find <collection> [term=value ...]",
	Short: "Print matching documents as JSON lines",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFind,
}

func init() {
	findCmd.Flags().StringVar(&findSort, "sort", "", "field to sort by")
	findCmd.Flags().BoolVar(&findDesc, "desc", false, "sort descending")
	findCmd.Flags().Int64Var(&findLimit, "limit", 0, "maximum documents to print")
	findCmd.Flags().Int64Var(&findSkip, "skip", 0, "documents to skip")
}

func runFind(cmd *cobra.Command, args []string) error {
	preds, err := parsePredicates(args[1:])
	if err != nil {
		return err
	}
	coll, drv, err := openCollection(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = drv.Close() }()

	qs := coll.Filter(preds)
	if findSort != "" {
		field := driver.Asc(findSort)
		if findDesc {
			field = driver.Desc(findSort)
		}
		qs = qs.SortBy(field)
	}
	if findLimit > 0 {
		qs = qs.Limit(findLimit)
	}
	if findSkip > 0 {
		qs = qs.Skip(findSkip)
	}

	ctx := cmd.Context()
	it, err := qs.Iter(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = it.Close(ctx) }()
	for it.Next(ctx) {
		if err := printDoc(it.Entity().Data()); err != nil {
			return err
		}
	}
	return it.Err()
}
