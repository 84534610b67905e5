package main

import (
	"context"
	"fmt"

	"github.com/cuemby/durastore/pkg/config"
	"github.com/cuemby/durastore/pkg/engine"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a fixture file against one object's storage",
	Long: `Apply a durastore fixture from a YAML file.

Examples:
  # Run a sequence of puts and deletes against an object
  durastore apply -f fixture.yaml

  # Fixture format:
  #   metadata:
  #     name: room:lobby
  #   spec:
  #     backend: memory
  #     operations:
  #       - op: put
  #         key: greeting
  #         value: hello
  #     transaction:
  #       - op: put
  #         key: counter
  #         value: "1"`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "fixture file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	fixture, err := config.LoadFixture(filename)
	if err != nil {
		return err
	}

	store, err := openStore(fixture.Spec.Backend, fixture.Spec.Path, fixture.Metadata.Name)
	if err != nil {
		return err
	}
	e := engine.New(fixture.Metadata.Name, store, engine.WithAlarmHandler(cliAlarmBridge{}))
	defer e.Close()

	ctx := context.Background()

	for _, op := range fixture.Spec.Operations {
		if err := applyDirectOp(ctx, e, op); err != nil {
			return fmt.Errorf("apply %s %s: %w", op.Op, op.Key, err)
		}
	}

	if len(fixture.Spec.Transaction) > 0 {
		err := e.Transaction(ctx, func(txn *engine.Transaction) error {
			for _, op := range fixture.Spec.Transaction {
				if err := applyTxnOp(txn, op); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("apply transaction: %w", err)
		}
	}

	if err := e.Sync(ctx); err != nil {
		return err
	}

	fmt.Printf("✓ applied %s to %s (%d operations, %d in transaction)\n",
		filename, fixture.Metadata.Name, len(fixture.Spec.Operations), len(fixture.Spec.Transaction))
	return nil
}

func applyDirectOp(ctx context.Context, e *engine.Engine, op config.Operation) error {
	switch op.Op {
	case config.OpPut:
		return e.Put(ctx, op.Key, []byte(op.Value))
	case config.OpDelete:
		_, err := e.Delete(ctx, op.Key)
		return err
	case config.OpSetAlarm:
		return e.SetAlarm(ctx, op.ScheduledTime)
	case config.OpDeleteAlarm:
		return e.DeleteAlarm(ctx)
	default:
		return fmt.Errorf("unsupported operation: %s", op.Op)
	}
}

func applyTxnOp(txn *engine.Transaction, op config.Operation) error {
	switch op.Op {
	case config.OpPut:
		return txn.Put(op.Key, []byte(op.Value))
	case config.OpDelete:
		_, err := txn.Delete(context.Background(), op.Key)
		return err
	case config.OpSetAlarm:
		return txn.SetAlarm(op.ScheduledTime)
	case config.OpDeleteAlarm:
		return txn.DeleteAlarm()
	default:
		return fmt.Errorf("unsupported operation: %s", op.Op)
	}
}
