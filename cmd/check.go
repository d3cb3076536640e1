package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// newCheckCmd creates the 'check' subcommand, a one-off crawl of a
// single product URL.
func newCheckCmd() *cobra.Command {
	var (
		rawURL      string
		name        string
		targetPrice int64
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Checks a single product URL once",
		Long: `Crawls one product page, prints the extracted fields, and fires a
price alert when --target-price is set and reached.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			target := crawler.Target{ID: 1, Name: name, URL: rawURL}
			if targetPrice > 0 {
				target.TargetPrice = &targetPrice
			}

			outcome, err := a.orch.CheckTarget(cmd.Context(), target)
			if err != nil {
				return fmt.Errorf("check target: %w", err)
			}
			printOutcome(outcome)
			if !outcome.Success {
				return fmt.Errorf("check failed: %s", outcome.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", "", "product page URL (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name for the product")
	cmd.Flags().Int64Var(&targetPrice, "target-price", 0, "alert when the price drops to this value or below")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func printOutcome(outcome crawler.Outcome) {
	if !outcome.Success {
		fmt.Printf("failed [%s] after %d retries: %s\n", outcome.ErrorCode, outcome.Retries, outcome.ErrorMessage)
		return
	}
	p := outcome.Product
	if p.Title != nil {
		fmt.Printf("title:     %s\n", *p.Title)
	}
	if p.Price != nil {
		fmt.Printf("price:     %d원\n", *p.Price)
	}
	if p.OriginalPrice != nil {
		fmt.Printf("original:  %d원\n", *p.OriginalPrice)
	}
	if p.DiscountRate != nil {
		fmt.Printf("discount:  %d%%\n", *p.DiscountRate)
	}
	fmt.Printf("available: %v\n", p.Available)
	if p.StockMessage != nil {
		fmt.Printf("stock:     %s\n", *p.StockMessage)
	}
	if p.Seller != nil {
		fmt.Printf("seller:    %s\n", *p.Seller)
	}
	if p.Rating != nil {
		fmt.Printf("rating:    %.1f\n", *p.Rating)
	}
	if p.ReviewCount != nil {
		fmt.Printf("reviews:   %d\n", *p.ReviewCount)
	}
	fmt.Printf("duration:  %s (retries: %d)\n", outcome.Duration.Round(0), outcome.Retries)
}
