package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

func newRecoverCommand(ctx *commandContext) *cobra.Command {
	var from string
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Print and open the identity hub address that restores the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := ctx.ensureCore()
			if err != nil {
				return err
			}
			defer core.Close()

			location := core.Guardian.RecoveryURL(from)
			fmt.Fprintln(cmd.OutOrStdout(), location)
			if noBrowser {
				return nil
			}
			if err := browser.OpenURL(location); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s could not open a browser: %v\n", color.New(color.FgYellow).Sprint("warning:"), err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "/", "Location to return to after recovery")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Only print the address")

	return cmd
}

func newHandshakeCommand(ctx *commandContext) *cobra.Command {
	var token string
	var next string

	cmd := &cobra.Command{
		Use:   "handshake",
		Short: "Exchange an identity hub token for a valid session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := ctx.ensureCore()
			if err != nil {
				return err
			}
			defer core.Close()

			location, err := core.Handshake.Run(cmd.Context(), token, next)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s continue at %s\n", color.New(color.FgGreen).Sprint("Access granted,"), location)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "One-time token issued by the identity hub")
	cmd.Flags().StringVar(&next, "next", "/", "Local path to continue at")

	return cmd
}
