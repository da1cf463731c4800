// Part of the dongo CLI - this file implements the 'dongo insert' subcommand.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dongo-odm/dongo/dongo"
)

var insertUUID bool

var insertCmd = &cobra.Command{
	Use:   "insert <collection> <json-document>",
	Short: "Insert one document and print its assigned id",
	Args:  cobra.ExactArgs(2),
	RunE:  runInsert,
}

func init() {
	insertCmd.Flags().BoolVar(&insertUUID, "uuid", false, "derive a secondary identifier on insert")
}

func runInsert(cmd *cobra.Command, args []string) error {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(args[1]), &data); err != nil {
		return fmt.Errorf("bad document: %w", err)
	}

	client, drv, err := openClient()
	if err != nil {
		return err
	}
	defer func() { _ = drv.Close() }()

	coll, err := client.Collection(dongo.CollectionConfig{Name: args[0], UseUUID: insertUUID})
	if err != nil {
		return err
	}
	entity, err := coll.Create(cmd.Context(), data)
	if err != nil {
		return err
	}
	if insertUUID {
		fmt.Printf("%s %s\n", entity.ID(), entity.UUID())
		return nil
	}
	fmt.Println(entity.ID())
	return nil
}
