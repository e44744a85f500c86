package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/udisondev/vcalc/internal/appdir"
	"github.com/udisondev/vcalc/pkg/credentials"
)

// useradd <login>: add or replace a user in the credentials file.
func useraddCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "useradd <login>",
		Short: "Add or replace a user in the credentials file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = appdir.CredentialsPath()
			}
			s, err := resolveSecret()
			if err != nil {
				return err
			}
			replaced, err := addUser(file, args[0], s)
			if err != nil {
				return err
			}
			if replaced {
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s in %s\n", args[0], file)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s\n", args[0], file)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "credentials file (default: app directory)")
	return cmd
}

// addUser добавляет пользователя или заменяет его секрет.
func addUser(path, login, secret string) (bool, error) {
	if login == "" {
		return false, errors.New("empty login")
	}

	creds, err := credentials.Load(path)
	if err != nil {
		return false, err
	}

	replaced := false
	for i := range creds {
		if creds[i].Login == login {
			creds[i].Secret = secret
			replaced = true
		}
	}
	if !replaced {
		creds = append(creds, credentials.Credential{Login: login, Secret: secret})
	}

	if err := credentials.WriteFile(path, creds); err != nil {
		return false, err
	}
	return replaced, nil
}
