package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/config"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/fivetran"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/logger"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/sync"
)

// newRunCmd executes a single sync locally: it reads a request envelope from
// a file or stdin and prints the response to stdout. Useful for development
// without deploying the function.
func newRunCmd() *cobra.Command {
	var requestPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one sync locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.New(flagVerbose, false)

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			req, err := readRequest(requestPath)
			if err != nil {
				return err
			}

			handler := fivetran.NewHandler(sync.New(cfg, log), log)
			resp := handler.Invoke(cmd.Context(), req)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().StringVarP(&requestPath, "request", "r", "-", "request envelope file, - for stdin")
	return cmd
}

// readRequest decodes the request envelope from path, or stdin for "-".
// Empty input yields the zero request: an initial backfill with credentials
// taken from the environment.
func readRequest(path string) (fivetran.Request, error) {
	var r io.Reader
	switch path {
	case "-":
		r = os.Stdin
	default:
		f, err := os.Open(path)
		if err != nil {
			return fivetran.Request{}, fmt.Errorf("open request file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req fivetran.Request
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return fivetran.Request{}, nil
		}
		return fivetran.Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
