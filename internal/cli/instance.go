package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewInstanceCmd создаёт группу команд для экземпляров.
func NewInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instance",
		Aliases: []string{"instances", "wf"},
		Short:   "Manage workflow instances",
	}

	cmd.AddCommand(
		newInstanceStartCmd(clientFn, outputFn),
		newInstanceShowCmd(clientFn, outputFn),
		newInstanceListCmd(clientFn, outputFn),
		newInstanceErrorsCmd(clientFn, outputFn),
		newInstanceTransitionCmd("suspend", "Suspend a runnable instance", clientFn, outputFn),
		newInstanceTransitionCmd("resume", "Resume a suspended instance", clientFn, outputFn),
		newInstanceTransitionCmd("terminate", "Terminate an unfinished instance", clientFn, outputFn),
	)

	return cmd
}

func newInstanceStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req StartInstanceRequest
	var data []string

	cmd := &cobra.Command{
		Use:   "start DEFINITION_ID",
		Short: "Start a new workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(data) > 0 {
				req.Data = make(map[string]any)
				for _, kv := range data {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid data format %q, expected KEY=VALUE", kv)
					}
					req.Data[parts[0]] = parts[1]
				}
			}

			id, err := clientFn().StartInstance(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Notice("Instance started: %s", id)
			out.Print([]string{"ID", "DEFINITION"}, [][]string{{id, args[0]}}, idResponse{ID: id})
			return nil
		},
	}

	cmd.Flags().IntVar(&req.Version, "version", 0, "Definition version (latest if not specified)")
	cmd.Flags().StringVar(&req.TenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "External reference")
	cmd.Flags().StringVar(&req.UserID, "user", "", "User starting the instance")
	cmd.Flags().StringSliceVar(&data, "data", nil, "Instance data as KEY=VALUE (repeatable)")

	return cmd
}

func newInstanceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an instance and its execution pointers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := clientFn().GetInstance(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"POINTER", "STEP", "NAME", "STATUS", "ACTIVE", "SLEEP_UNTIL", "EVENT"}
			rows := make([][]string, len(inst.Pointers))
			for i, p := range inst.Pointers {
				event := ""
				if p.EventName != "" {
					event = p.EventName + "/" + p.EventKey
				}
				rows[i] = []string{p.ID, strconv.Itoa(p.StepID), p.StepName, p.Status, strconv.FormatBool(p.Active), p.SleepUntil, event}
			}

			out := outputFn()
			out.Notice("%s  %s v%d  %s", inst.ID, inst.DefinitionID, inst.Version, inst.Status)
			out.Print(headers, rows, inst)
			return nil
		},
	}
}

func newInstanceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListInstancesOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			instances, err := clientFn().ListInstances(cmd.Context(), opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "DEFINITION", "VERSION", "STATUS", "REFERENCE", "CREATED"}
			rows := make([][]string, len(instances))
			for i, inst := range instances {
				rows[i] = []string{inst.ID, inst.DefinitionID, strconv.Itoa(inst.Version), inst.Status, inst.Reference, inst.CreateTime}
			}

			outputFn().Print(headers, rows, instances)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (RUNNABLE, SUSPENDED, COMPLETE, TERMINATED)")
	cmd.Flags().StringVar(&opts.DefinitionID, "definition", "", "Filter by definition ID")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "Filter by tenant ID")
	cmd.Flags().StringVar(&opts.UserID, "user", "", "Filter by user who started the instance")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "Skip first N results")
	cmd.Flags().IntVar(&opts.Take, "take", 0, "Maximum number of results")

	return cmd
}

func newInstanceErrorsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "errors ID",
		Short: "Show the execution error log of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errs, err := clientFn().ListErrors(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"TIME", "POINTER", "MESSAGE"}
			rows := make([][]string, len(errs))
			for i, e := range errs {
				rows[i] = []string{e.Time, e.PointerID, e.Message}
			}

			outputFn().Print(headers, rows, errs)
			return nil
		},
	}
}

func newInstanceTransitionCmd(operation, short string, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   operation + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFn().Transition(cmd.Context(), args[0], operation)
			if err != nil {
				return err
			}

			out := outputFn()
			if resp.Changed {
				out.Notice("Instance %s: %s done", resp.ID, operation)
			} else {
				out.Notice("Instance %s: %s not applied (status does not allow it or instance is locked)", resp.ID, operation)
			}
			out.Print(
				[]string{"ID", "OPERATION", "CHANGED"},
				[][]string{{resp.ID, resp.Operation, strconv.FormatBool(resp.Changed)}},
				resp,
			)
			return nil
		},
	}
}
