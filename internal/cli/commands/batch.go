package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rpcwire/rpcwire/internal/cli/output"
	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
	"github.com/rpcwire/rpcwire/internal/domain/script"
	"github.com/spf13/cobra"
)

var (
	batchScript string
	batchNotify []string
	batchArgs   []string
)

var batchCmd = &cobra.Command{
	Use:   "batch [method[=params]...]",
	Short: "Send several calls as one JSON-RPC batch",
	Long: `Send several calls in one HTTP request. Each argument is a method name,
optionally followed by '=' and its params as JSON:

  rpcwire batch 'review.get={"id":1}' 'review.get={"id":2}' project.list

With --script the batch is built by a JavaScript file. The script sees
'args', 'log(msg)', 'rpc.call(method, params)' and 'rpc.notify(method, params)'
and returns an array of requests; falsy entries become empty slots:

  return args.ids.split(",").map(function (id) {
    return rpc.call("review.get", {id: Number(id)});
  });`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchScript == "" && len(args) == 0 && len(batchNotify) == 0 {
			return fmt.Errorf("nothing to send, pass methods or --script")
		}
		if batchScript != "" && len(args) > 0 {
			return fmt.Errorf("use either --script or method arguments")
		}

		s, err := openSession()
		if err != nil {
			return err
		}

		var (
			slots   []*rpc.Request
			results []json.RawMessage
		)
		if batchScript != "" {
			scriptArgs, err := parseParams(batchArgs, "")
			if err != nil {
				return err
			}
			bs, err := script.LoadBatchScript(batchScript, scriptArgs.(map[string]any))
			if err != nil {
				return err
			}
			results, err = bs.Run(cmd.Context(), s.Client)
			if err != nil {
				return err
			}
			slots = bs.Slots()
		} else {
			type entry struct {
				method string
				params any
			}
			entries := make([]entry, 0, len(args))
			for _, arg := range args {
				method, params, err := parseBatchArg(arg)
				if err != nil {
					return err
				}
				entries = append(entries, entry{method, params})
			}

			results, err = s.Client.Batch(cmd.Context(), func(b *client.Batch) []*rpc.Request {
				slots = make([]*rpc.Request, 0, len(entries)+len(batchNotify))
				for _, e := range entries {
					slots = append(slots, b.Call(e.method, e.params))
				}
				for _, method := range batchNotify {
					slots = append(slots, b.Notify(method, nil))
				}
				return slots
			})
			if err != nil {
				return err
			}
		}

		rows := make([]output.BatchRow, len(results))
		for i := range results {
			rows[i] = output.BatchRow{Slot: i, Result: results[i]}
			if i < len(slots) && slots[i] != nil {
				rows[i].Method = slots[i].Method
				rows[i].ID = slots[i].Key()
			}
		}
		newFormatter(cmd).PrintBatch(rows)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVar(&batchScript, "script", "", "JavaScript file that builds the batch")
	batchCmd.Flags().StringArrayVar(&batchArgs, "arg", nil, "script argument as key=value (repeatable)")
	batchCmd.Flags().StringArrayVar(&batchNotify, "notify", nil, "add a notification for method (repeatable)")
}
