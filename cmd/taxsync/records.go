package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/taxsyncpro/taxsync/internal/clients"
	"github.com/taxsyncpro/taxsync/internal/export"
	"github.com/taxsyncpro/taxsync/internal/receipts"
	"github.com/taxsyncpro/taxsync/internal/reports"
)

func (c *cli) receiptsCmd() *cobra.Command {
	var req receipts.ListReceiptsRequest
	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "List stored receipts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.app.Receipts.ListReceipts(cmd.Context(), req)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, list); ok {
				return err
			}
			names, err := c.categoryNames(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tVENDOR\tCATEGORY\tAMOUNT\tDESCRIPTION")
			for _, r := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Date, r.Vendor, names[r.CategoryID],
					humanize.CommafWithDigits(r.Amount, 2), r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&req.FromDate, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.ToDate, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.Category, "category", "", "category name")
	cmd.Flags().Int64Var(&req.ClientID, "client", 0, "client id")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "maximum number of receipts")
	return cmd
}

func (c *cli) categoryNames(cmd *cobra.Command) (map[int64]string, error) {
	cats, err := c.app.Receipts.ListCategories(cmd.Context())
	if err != nil {
		return nil, userError(err)
	}
	names := make(map[int64]string, len(cats))
	for _, cat := range cats {
		names[cat.ID] = cat.Name
	}
	return names, nil
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List expense categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := c.app.Receipts.ListCategories(cmd.Context())
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, cats); ok {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
			for _, cat := range cats {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", cat.ID, cat.Name, cat.Color)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) clientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage clients receipts can be attributed to",
	}

	var req clients.CreateClientRequest
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			client, err := c.app.Clients.CreateClient(cmd.Context(), req)
			if err != nil {
				return userError(err)
			}
			if ok, err := c.printJSON(cmd.OutOrStdout(), client); ok {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created client %d (%s)\n", client.ID, client.Name)
			return nil
		},
	}
	add.Flags().StringVar(&req.ProjectCode, "project", "", "project code")
	add.Flags().StringVar(&req.Email, "email", "", "contact email")

	list := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := c.app.Clients.ListClients(cmd.Context())
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, all); ok {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tPROJECT\tEMAIL")
			for _, cl := range all {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", cl.ID, cl.Name, cl.ProjectCode, cl.Email)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	var req reports.Request
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize spending by category, client and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sum, err := c.app.Reports.Summary(cmd.Context(), req)
			if err != nil {
				return userError(err)
			}
			out := cmd.OutOrStdout()
			if ok, err := c.printJSON(out, sum); ok {
				return err
			}
			fmt.Fprintf(out, "%s receipts, total %s\n", humanize.Comma(int64(sum.Count)), sum.Total.StringFixed(2))
			for _, section := range []struct {
				title   string
				buckets []reports.Bucket
			}{
				{"CATEGORY", sum.ByCategory},
				{"CLIENT", sum.ByClient},
				{"MONTH", sum.ByMonth},
			} {
				fmt.Fprintln(out)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintf(tw, "%s\tCOUNT\tTOTAL\t\n", section.title)
				for _, b := range section.buckets {
					fmt.Fprintf(tw, "%s\t%d\t%s\t\n", b.Label, b.Count, b.Total.StringFixed(2))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.From, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.To, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().Int64Var(&req.ClientID, "client", 0, "client id")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		req  export.Request
		path string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write receipts and a summary sheet to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := c.app.Export.ExportReceiptsXLSX(cmd.Context(), req)
			if err != nil {
				return userError(err)
			}
			if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
				path += ".xlsx"
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", path, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "out", "o", "receipts.xlsx", "output file")
	cmd.Flags().StringVar(&req.From, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&req.To, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().Int64Var(&req.ClientID, "client", 0, "client id")
	return cmd
}

