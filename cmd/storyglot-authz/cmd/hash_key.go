package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/storyglot/authz/internal/domain/auth"
)

var useArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate a hash for an API key",
	Long: `Generate a hash of an API key for use in config.

The default output format is "sha256:<hex>", which can be used directly
in the auth.api_keys.key_hash field. With --argon2id the key is hashed
with argon2id instead (slower to verify, resistant to brute force).

Example:
  storyglot-authz hash-key "my-secret-api-key"
  # Output: sha256:7d5e8c...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  storyglot-authz hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if useArgon2id {
			hash, err := auth.HashKeyArgon2id(key)
			if err != nil {
				return fmt.Errorf("hash key: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println(auth.HashKey(key))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&useArgon2id, "argon2id", false, "hash with argon2id instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
