package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MacJediWizard/licenseclient/internal/license"
	"github.com/MacJediWizard/licenseclient/pkg/models"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "normalize <license text>",
		Short: "Normalize license text into a canonical code",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			code, ok := license.Normalize(text)
			if !ok {
				return &license.ValidationError{Input: text}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Code:     %s\n", code)
			if external, ok := license.ExternalTaxonomyCode(string(code)); ok {
				fmt.Fprintf(out, "External: %s\n", external)
			}
			fmt.Fprintf(out, "Name:     %s\n", strings.Join(license.DisplayNames(code, locale), ", "))
			if u := license.CreativeCommonsURL(string(code), locale); u != "" {
				fmt.Fprintf(out, "URL:      %s\n", u)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&locale, "locale", license.LocaleEnglish, "display locale (en-gb, nb-no, sv-se)")

	return cmd
}

func newLicensesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "licenses",
		Short: "List the licenses supported by the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				licenses, err := a.client.ListLicenses(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, l := range licenses {
					if l.Name != "" {
						fmt.Fprintf(out, "%-10s %s\n", l.ID, l.Name)
					} else {
						fmt.Fprintln(out, l.ID)
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "supported <license>",
		Short: "Check whether the service supports a license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				ok, err := a.client.IsLicenseSupported(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok)
				return nil
			})
		},
	})

	return cmd
}

func newContentCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage content registered with the service",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <id>...",
			Short: "Show the license assignment of content",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					if len(args) == 1 {
						content, err := a.client.GetContent(ctx, args[0])
						if err != nil {
							return err
						}
						if content == nil {
							return fmt.Errorf("content %s not found", args[0])
						}
						return printJSON(cmd.OutOrStdout(), content)
					}

					contents, err := a.client.GetContents(ctx, args)
					if err != nil {
						return err
					}
					if contents == nil {
						contents = []models.Content{}
					}
					return printJSON(cmd.OutOrStdout(), contents)
				})
			},
		},
		&cobra.Command{
			Use:   "add <id> <name>",
			Short: "Register content",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					content, err := a.client.AddContent(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					if content == nil {
						return fmt.Errorf("site %s not found", a.cfg.Site)
					}
					return printJSON(cmd.OutOrStdout(), content)
				})
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Remove content",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					if err := a.client.DeleteContent(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
					return nil
				})
			},
		},
	)

	return cmd
}

func newLicenseCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Change the licenses assigned to content",
	}

	// licenseArg returns the license argument normalized to a canonical code, falling
	// back to the configured default.
	licenseArg := func(a *app, args []string) (string, error) {
		raw := a.cfg.DefaultLicense
		if len(args) > 1 {
			raw = args[1]
		}
		if raw == "" {
			return "", errors.New("no license given and no default_license configured")
		}
		code, err := license.Parse(raw)
		if err != nil {
			return "", err
		}
		return code.String(), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <id> [license]",
			Short: "Assign a license to content",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					licenseID, err := licenseArg(a, args)
					if err != nil {
						return err
					}
					content, err := a.client.AddLicense(ctx, args[0], licenseID)
					if err != nil {
						return err
					}
					if content == nil {
						return fmt.Errorf("content %s not found", args[0])
					}
					return printJSON(cmd.OutOrStdout(), content)
				})
			},
		},
		&cobra.Command{
			Use:   "remove <id> <license>",
			Short: "Remove a license from content",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					content, err := a.client.RemoveLicense(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					if content == nil {
						return fmt.Errorf("content %s not found", args[0])
					}
					return printJSON(cmd.OutOrStdout(), content)
				})
			},
		},
		&cobra.Command{
			Use:   "set <id> [license]",
			Short: "Replace every license on content with one license",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					licenseID, err := licenseArg(a, args)
					if err != nil {
						return err
					}
					first, err := a.client.SetLicense(ctx, args[0], licenseID)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), first)
					return nil
				})
			},
		},
	)

	return cmd
}

func newCopyableCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copyable",
		Short: "Check whether content or a license allows copying",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "content <id>",
			Short: "Check whether content may be copied",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					ok, err := a.client.IsContentCopyable(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), ok)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "license <license>",
			Short: "Check whether a license allows copying",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, func(ctx context.Context, a *app) error {
					ok, err := a.client.IsLicenseCopyable(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), ok)
					return nil
				})
			},
		},
	)

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
