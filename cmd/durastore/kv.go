package main

import (
	"context"
	"fmt"

	"github.com/cuemby/durastore/pkg/types"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <object> <key>",
	Short: "Read a single key from an object's storage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		object, key := args[0], args[1]
		e, err := openEngine(cmd, object)
		if err != nil {
			return err
		}
		defer e.Close()

		value, ok, err := e.Get(context.Background(), key)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%s: (not found)\n", key)
			return nil
		}
		fmt.Printf("%s: %s\n", key, value)
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put <object> <key> <value>",
	Short: "Write a single key to an object's storage",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		object, key, value := args[0], args[1], args[2]
		e, err := openEngine(cmd, object)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := context.Background()
		if err := e.Put(ctx, key, []byte(value)); err != nil {
			return err
		}
		if err := e.Sync(ctx); err != nil {
			return err
		}
		fmt.Printf("✓ put %s=%s on %s\n", key, value, object)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <object> <key>",
	Short: "Delete a single key from an object's storage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		object, key := args[0], args[1]
		e, err := openEngine(cmd, object)
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := context.Background()
		existed, err := e.Delete(ctx, key)
		if err != nil {
			return err
		}
		if err := e.Sync(ctx); err != nil {
			return err
		}
		if existed {
			fmt.Printf("✓ deleted %s from %s\n", key, object)
		} else {
			fmt.Printf("%s was not present on %s\n", key, object)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list <object>",
	Short: "List keys stored against an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		object := args[0]
		prefix, _ := cmd.Flags().GetString("prefix")
		limit, _ := cmd.Flags().GetInt("limit")
		reverse, _ := cmd.Flags().GetBool("reverse")

		e, err := openEngine(cmd, object)
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := e.List(context.Background(), types.ListOptions{
			Prefix:  prefix,
			Limit:   limit,
			Reverse: reverse,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("(no keys)")
			return nil
		}
		for _, entry := range entries {
			fmt.Println(entry.Name)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("prefix", "", "only list keys with this prefix")
	listCmd.Flags().Int("limit", 100, "maximum number of keys to list")
	listCmd.Flags().Bool("reverse", false, "list in reverse lexicographic order")
}
