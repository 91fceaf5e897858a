package cli

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/mailbutler/fivetran-bitbucket-connector/internal/config"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/fivetran"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/logger"
	"github.com/mailbutler/fivetran-bitbucket-connector/internal/sync"
)

// newLambdaCmd starts the AWS Lambda runtime loop. This is the production
// entrypoint: Fivetran invokes the function with the request envelope and
// persists the state object of each response.
func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Start the AWS Lambda runtime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.New(flagVerbose, true)

			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}

			handler := fivetran.NewHandler(sync.New(cfg, log), log)
			lambda.StartWithOptions(
				func(ctx context.Context, req fivetran.Request) (any, error) {
					return handler.Invoke(ctx, req), nil
				},
				lambda.WithContext(cmd.Context()),
			)
			return nil
		},
	}
}
