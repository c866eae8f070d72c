package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quillbooks/autocode/internal/cli"
	"github.com/quillbooks/autocode/internal/model"
)

func tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenants",
	}
	cmd.AddCommand(tenantsAddCmd())
	cmd.AddCommand(tenantsListCmd())
	return cmd
}

func tenantsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Register a new tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = args[0]
			}

			if err := store.CreateTenant(ctx, &model.Tenant{ID: args[0], Name: name}); err != nil {
				return fmt.Errorf("failed to create tenant: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("tenant %s registered", args[0])))
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name (defaults to the ID)")
	return cmd
}

func tenantsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tenants, err := store.ListTenants(ctx)
			if err != nil {
				return fmt.Errorf("failed to list tenants: %w", err)
			}

			if len(tenants) == 0 {
				fmt.Println(cli.SubtleStyle.Render("no tenants registered"))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCREATED")
			for _, tenant := range tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					tenant.ID, tenant.Name, tenant.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}
}
