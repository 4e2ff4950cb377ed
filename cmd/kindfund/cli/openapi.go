package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kindfund/kindfund/internal/openapi"
	"github.com/kindfund/kindfund/internal/policy"
)

func newOpenAPICmd(a *app) *cobra.Command {
	var (
		serverURL  string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.1 document of the HTTP API. Operations that require an
admin session carry the bearerAuth security requirement. This is the same
document the server publishes at /openapi.json.`,
		Example: `  kindfund openapi                 # print to stdout
  kindfund openapi -o openapi.json # write to file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := openapi.Generate(policy.Default(), a.serverURL(serverURL), versionString(a.version))
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			data = append(data, '\n')

			if outputFile == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outputFile, data, 0644); err != nil {
				return fmt.Errorf("write spec: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d operations to %s\n", openapi.OperationCount(doc), outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Server URL advertised in the document (default: http://localhost:<server.port>)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}
