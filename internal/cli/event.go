package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для событий.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Publish events",
	}

	cmd.AddCommand(newEventPublishCmd(clientFn, outputFn))
	return cmd
}

func newEventPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var effective string

	cmd := &cobra.Command{
		Use:   "publish NAME KEY",
		Short: "Publish an event to waiting instances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := PublishEventRequest{
				Name: args[0],
				Key:  args[1],
			}

			if data != "" {
				if err := json.Unmarshal([]byte(data), &req.Data); err != nil {
					return fmt.Errorf("invalid --data JSON: %w", err)
				}
			}

			if effective != "" {
				t, err := time.Parse(time.RFC3339, effective)
				if err != nil {
					return fmt.Errorf("invalid --effective %q, expected RFC3339: %w", effective, err)
				}
				req.EffectiveTime = &t
			}

			id, err := clientFn().PublishEvent(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Notice("Event published: %s", id)
			out.Print([]string{"ID", "NAME", "KEY"}, [][]string{{id, req.Name, req.Key}}, idResponse{ID: id})
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Event payload as JSON")
	cmd.Flags().StringVar(&effective, "effective", "", "Effective time (RFC3339, default: now)")

	return cmd
}
