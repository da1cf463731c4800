// Part of the dongo CLI - root command, shared flags and helpers.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dongo-odm/dongo/dongo"
	"github.com/dongo-odm/dongo/dongo/driver/memdriver"
)

var (
	snapshotPath string
	database     string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "dongo",
	Short: "Inspect and edit dongo snapshot files",
	Long: `dongo operates on snapshot files written by the in-process driver.

Filters use the keyword grammar: a bare field ("name=joe"), a nested
path ("account__plan=paid"), or a path with a trailing comparison
operator ("age__gte=30"). Values parse as JSON first and fall back to
plain strings.

Examples:
  # Count the paid accounts
  dongo --snapshot data.dngo count people account__plan=paid

  # Find the two oldest red-colored people
  dongo --snapshot data.dngo find people color=red --sort age --desc --limit 2

  # Insert a document and print its assigned id
  dongo --snapshot data.dngo insert people '{"name": "joe", "age": 20}'`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&snapshotPath, "snapshot", "s", "", "path to the snapshot file (or DONGO_SNAPSHOT)")
	rootCmd.PersistentFlags().StringVarP(&database, "database", "d", "app", "database name used for namespaces")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log driver activity to stderr")

	viper.SetEnvPrefix("dongo")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("snapshot", rootCmd.PersistentFlags().Lookup("snapshot"))
	_ = viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))

	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(deleteCmd)
}

// openClient opens the snapshot-backed driver and wraps it in a client.
// The returned driver must be closed to flush pending writes.
func openClient() (*dongo.Client, *memdriver.Driver, error) {
	path := viper.GetString("snapshot")
	if path == "" {
		return nil, nil, fmt.Errorf("snapshot path is required (--snapshot or DONGO_SNAPSHOT)")
	}
	opts := []memdriver.Option{memdriver.WithSnapshotFile(path)}
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, memdriver.WithLogger(slog.New(handler)))
	}
	drv, err := memdriver.Open(opts...)
	if err != nil {
		return nil, nil, err
	}
	client, err := dongo.NewClient(drv, dongo.Config{Database: viper.GetString("database")})
	if err != nil {
		return nil, nil, err
	}
	return client, drv, nil
}

// openCollection opens the client and declares the named collection.
func openCollection(name string) (*dongo.Collection, *memdriver.Driver, error) {
	client, drv, err := openClient()
	if err != nil {
		return nil, nil, err
	}
	coll, err := client.Collection(dongo.CollectionConfig{Name: name})
	if err != nil {
		return nil, nil, err
	}
	return coll, drv, nil
}

// parsePredicates turns "term=value" arguments into a predicate set.
// Values parse as JSON when possible, so numbers, booleans and lists
// come through typed; anything else stays a string.
func parsePredicates(args []string) (dongo.P, error) {
	preds := dongo.P{}
	for _, arg := range args {
		term, raw, ok := strings.Cut(arg, "=")
		if !ok || term == "" {
			return nil, fmt.Errorf("bad filter %q: want term=value", arg)
		}
		var value interface{}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		preds[term] = value
	}
	return preds, nil
}

// printDoc writes one document as a compact JSON line.
func printDoc(doc map[string]interface{}) error {
	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
