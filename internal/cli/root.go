package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// DefaultAPIURL — адрес API по умолчанию.
const DefaultAPIURL = "http://localhost:8080"

// NewRootCmd создаёт корневую команду durable-cli.
// stdout и stderr — куда писать данные и сообщения.
func NewRootCmd(version string, stdout, stderr io.Writer) *cobra.Command {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "durable-cli",
		Short:         "Durable CLI — manage workflow instances and events",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", DefaultAPIURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL) }
	outputFn := func() *Output { return NewOutputTo(jsonOutput, stdout, stderr) }

	rootCmd.AddCommand(
		NewInstanceCmd(clientFn, outputFn),
		NewEventCmd(clientFn, outputFn),
		NewDefinitionCmd(clientFn, outputFn),
	)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	return rootCmd
}
