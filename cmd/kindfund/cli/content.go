package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kindfund/kindfund/internal/client"
	"github.com/kindfund/kindfund/internal/model"
)

func newContentCmd(a *app) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "content",
		Short: "Read and manage content collections on a running server",
		Long: fmt.Sprintf(`List, read, create and delete documents through the HTTP API. Requests carry
the session stored by 'kindfund login'; operations that need an admin fail
with a prompt to log in when no valid session is held.

Collections: %v`, model.Collections),
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "kindfund server URL (default: http://localhost:<server.port>)")

	cmd.AddCommand(newContentListCmd(a, &serverURL))
	cmd.AddCommand(newContentGetCmd(a, &serverURL))
	cmd.AddCommand(newContentCreateCmd(a, &serverURL))
	cmd.AddCommand(newContentDeleteCmd(a, &serverURL))

	return cmd
}

// collectionArg validates the collection name before any request is sent.
func collectionArg(name string) error {
	if _, err := model.NewDocument(name); err != nil {
		return fmt.Errorf("unknown collection %q (want one of %v)", name, model.Collections)
	}
	return nil
}

// sessionHint makes an unauthorized result actionable.
func sessionHint(err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("%w: run 'kindfund login' first", err)
	}
	return err
}

func newContentListCmd(a *app, serverURL *string) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:     "list <collection>",
		Aliases: []string{"ls"},
		Short:   "List documents in a collection, newest first",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := collectionArg(args[0]); err != nil {
				return err
			}
			res, err := a.newClient(*serverURL).List(cmdContext(cmd), args[0], limit, offset)
			if err != nil {
				return sessionHint(err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of documents (server default when 0)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of documents to skip")

	return cmd
}

func newContentGetCmd(a *app, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := collectionArg(args[0]); err != nil {
				return err
			}
			doc, err := a.newClient(*serverURL).Get(cmdContext(cmd), args[0], args[1])
			if err != nil {
				return sessionHint(err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
}

func newContentCreateCmd(a *app, serverURL *string) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create <collection>",
		Short: "Create a document from JSON",
		Example: `  kindfund content create causes --file cause.json
  echo '{"name":"Ada","email":"ada@example.com","message":"Hi"}' | kindfund content create contacts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := collectionArg(args[0]); err != nil {
				return err
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			body, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			if !json.Valid(body) {
				return fmt.Errorf("document is not valid JSON")
			}

			doc, err := a.newClient(*serverURL).Create(cmdContext(cmd), args[0], json.RawMessage(body))
			if err != nil {
				return sessionHint(err)
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the document from this file instead of stdin")

	return cmd
}

func newContentDeleteCmd(a *app, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <collection> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := collectionArg(args[0]); err != nil {
				return err
			}
			if err := a.newClient(*serverURL).Delete(cmdContext(cmd), args[0], args[1]); err != nil {
				return sessionHint(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", args[0], args[1])
			return nil
		},
	}
}
