package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kotileipomo/faq-engine/internal/app"
	"github.com/kotileipomo/faq-engine/internal/catalog"
	"github.com/kotileipomo/faq-engine/internal/kb"
)

var errCatalogDisabled = errors.New("online store not configured; set ECWID_STORE_ID and ECWID_TOKEN")

// newCatalogCmd creates the catalog command group.
func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Check the online store connection",
	}
	cmd.AddCommand(newCatalogStatusCmd())
	cmd.AddCommand(newCatalogProductsCmd())
	return cmd
}

// catalogStatus summarizes one catalog fetch.
type catalogStatus struct {
	Resource string         `json:"resource"`
	Count    int            `json:"count"`
	Status   catalog.Status `json:"status"`
}

// newCatalogStatusCmd creates the catalog status subcommand.
func newCatalogStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Fetch categories, products and shipping blackouts once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openCatalogApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var results []catalogStatus
			err = ui.Spinner("Contacting online store...", func() error {
				results = probeCatalog(ctx, a.Catalog)
				return nil
			})
			if err != nil {
				return err
			}

			if outputJSON {
				return printJSON(results)
			}
			rows := make([][]string, 0, len(results))
			healthy := true
			for _, r := range results {
				rows = append(rows, []string{r.Resource, strconv.Itoa(r.Count), string(r.Status)})
				if r.Status == catalog.StatusUnavailable {
					healthy = false
				}
			}
			ui.Table([]string{"Resource", "Count", "Status"}, rows)
			if !healthy {
				ui.Warning("Some catalog calls failed; answers will say the catalog is unavailable")
				return nil
			}
			ui.Success("Online store reachable")
			return nil
		},
	}
}

// newCatalogProductsCmd creates the catalog products subcommand.
func newCatalogProductsCmd() *cobra.Command {
	var (
		limit    int
		category int64
	)

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products from the online store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := openCatalogApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var cat *int64
			if category > 0 {
				cat = &category
			}
			var (
				products []catalog.Product
				status   catalog.Status
			)
			_ = ui.Spinner("Fetching products...", func() error {
				products, status = a.Catalog.Products(ctx, limit, cat)
				return nil
			})
			if status == catalog.StatusUnavailable {
				return errors.New("catalog unavailable")
			}

			if outputJSON {
				return printJSON(products)
			}
			rows := make([][]string, 0, len(products))
			for _, p := range products {
				price := "-"
				if p.Price != nil {
					price = fmt.Sprintf("%.2f €", *p.Price)
				}
				stock := "yes"
				if p.InStock != nil && !*p.InStock {
					stock = "no"
				}
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10),
					truncate(p.Name, 40),
					price,
					stock,
					strconv.FormatBool(p.Enabled),
				})
			}
			ui.Table([]string{"ID", "Name", "Price", "In stock", "Enabled"}, rows)
			ui.Info("%d products (%s)", len(products), status)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of products")
	cmd.Flags().Int64Var(&category, "category", 0, "only products in this category id")
	return cmd
}

func openCatalogApp(ctx context.Context) (*app.App, error) {
	if !cfg.CatalogEnabled() {
		return nil, errCatalogDisabled
	}
	return openApp(ctx)
}

// probeCatalog fetches each catalog resource once, in the order resolvers use them.
func probeCatalog(ctx context.Context, p interface {
	Categories(ctx context.Context, limit int) ([]catalog.Category, catalog.Status)
	Products(ctx context.Context, limit int, category *int64) ([]catalog.Product, catalog.Status)
	Blackouts(ctx context.Context) ([]kb.BlackoutRange, catalog.Status)
}) []catalogStatus {
	cats, cs := p.Categories(ctx, 200)
	prods, ps := p.Products(ctx, 200, nil)
	blackouts, bs := p.Blackouts(ctx)
	return []catalogStatus{
		{Resource: "categories", Count: len(cats), Status: cs},
		{Resource: "products", Count: len(prods), Status: ps},
		{Resource: "blackouts", Count: len(blackouts), Status: bs},
	}
}
