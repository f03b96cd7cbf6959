package main

import (
	"fmt"
	"os"

	"github.com/levitate-os/recipe/internal/checksum"
	"github.com/spf13/cobra"
)

var hashAlgo string

// hashCmd is a standalone digest path for recipe authors: precompute
// the digest a verify_* call will later check, independent of any
// recipe engine run.
var hashCmd = &cobra.Command{
	Use:   "hash <file>",
	Short: "Compute a file's digest for use as a verify_* argument in a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := checksum.HashFile(args[0], checksum.Algorithm(hashAlgo), os.Stderr)
		if err != nil {
			return err
		}
		fmt.Println(sum)
		return nil
	},
}

func init() {
	hashCmd.Flags().StringVar(&hashAlgo, "algo", string(checksum.SHA256), "digest algorithm: sha256, sha512, or blake3")
}
