package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goldengate/goldengate/internal/domain/credential"
)

var credName string

var genCredentialsCmd = &cobra.Command{
	Use:   "gen-credentials",
	Short: "Generate a key/secret pair for a new user",
	Long: `Generate a random access key and secret, printed as a YAML document
ready to append to a credentials file:

  goldengate gen-credentials --name alice@example.com >> aws.creds`,
	RunE: runGenCredentials,
}

func init() {
	genCredentialsCmd.Flags().StringVar(&credName, "name", "", "entity name to include in the document (e.g. an email address)")
	rootCmd.AddCommand(genCredentialsCmd)
}

func runGenCredentials(cmd *cobra.Command, args []string) error {
	key, secret, err := credential.Generate()
	if err != nil {
		return fmt.Errorf("generate credentials: %w", err)
	}

	fmt.Println("---")
	if credName != "" {
		fmt.Printf("name: %s\n", credName)
	}
	fmt.Printf("key: %s\n", key)
	fmt.Printf("secret: %s\n", secret)
	return nil
}
