// internal/cli/offers.go
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"loangenius/internal/common/errors"
	"loangenius/internal/loan/offers"
	"loangenius/internal/loan/submission"
)

func newOffersCommand(st *rootState) *cobra.Command {
	var (
		sortKey    string
		categories []string
		features   []string
	)

	cmd := &cobra.Command{
		Use:   "offers",
		Short: "Show the offers of your last submitted application",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := offers.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			view := offers.View{
				Sort:      key,
				Selection: offers.Selection{FeatureIDs: features, Categories: categories},
			}
			return showStoredOffers(cmd.Context(), st.app, view)
		},
	}

	cmd.Flags().StringVar(&sortKey, "sort", string(offers.SortRecommended), "sort key: recommended, totalPayable, loanAmount, tenure, interestRate, processingFees")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only show lenders of these categories")
	cmd.Flags().StringSliceVar(&features, "feature", nil, "only show offers carrying one of these feature ids")
	return cmd
}

func showStoredOffers(ctx context.Context, app *App, view offers.View) error {
	stored, ok, err := submission.LoadLastResult(ctx, app.KV)
	if err != nil {
		return err
	}
	if !ok {
		app.printf("No loan offers found. Run `loangenius apply` first.\n")
		return nil
	}

	partition, err := offers.Normalize(stored.Offers)
	if err != nil {
		return errors.NewMalformedResponseError("offers", err.Error())
	}
	if stored.Lead.LeadID != "" {
		app.printf("Lead %s\n", stored.Lead.LeadID)
	}
	renderPresentation(app.Out, offers.Present(partition, view), view)
	return nil
}

// browseOffers lets the applicant sort and filter interactively.
func browseOffers(app *App, raw json.RawMessage) error {
	partition, err := offers.Normalize(raw)
	if err != nil {
		return errors.NewMalformedResponseError("offers", err.Error())
	}
	if partition.Empty() {
		app.printf("No loan offers are available for your profile right now.\n")
		return nil
	}

	view := offers.View{Sort: offers.SortRecommended}
	for {
		p := offers.Present(partition, view)
		renderPresentation(app.Out, p, view)

		action, err := app.Prompt.Select("What next", []Option{
			{"sort", "Change sort order"},
			{"category", "Filter by lender category"},
			{"feature", "Filter by feature"},
			{"clear", "Clear filters"},
			{"done", "Done"},
		})
		if err != nil {
			return err
		}

		switch action.Value {
		case "sort":
			opts := make([]Option, 0, len(offers.SortKeys))
			for _, k := range offers.SortKeys {
				opts = append(opts, Option{Value: string(k.Key), Label: k.Label})
			}
			o, err := app.Prompt.Select("Sort by", opts)
			if err != nil {
				return err
			}
			view.Sort = offers.SortKey(o.Value)
		case "category":
			opts := make([]Option, 0, len(p.Facets.Categories))
			for _, c := range p.Facets.Categories {
				opts = append(opts, Option{Value: c, Label: c})
			}
			if len(opts) == 0 {
				app.printf("No lender categories to filter by.\n")
				continue
			}
			o, err := app.Prompt.Select("Lender category", opts)
			if err != nil {
				return err
			}
			view.Selection.Categories = toggle(view.Selection.Categories, o.Value)
		case "feature":
			opts := make([]Option, 0, len(p.Facets.Features))
			for _, t := range p.Facets.Features {
				opts = append(opts, Option{Value: t.ID, Label: t.Name})
			}
			if len(opts) == 0 {
				app.printf("No features to filter by.\n")
				continue
			}
			o, err := app.Prompt.Select("Feature", opts)
			if err != nil {
				return err
			}
			view.Selection.FeatureIDs = toggle(view.Selection.FeatureIDs, o.Value)
		case "clear":
			view.Selection = offers.Selection{}
		default:
			return nil
		}
	}
}

// toggle adds v to list, or removes it when already present.
func toggle(list []string, v string) []string {
	for i, s := range list {
		if s == v {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return append(list, v)
}

func renderPresentation(out io.Writer, p offers.Presentation, view offers.View) {
	label := string(view.Sort)
	for _, k := range offers.SortKeys {
		if k.Key == view.Sort {
			label = k.Label
		}
	}
	fmt.Fprintf(out, "\n%d offer(s), sorted by %s\n", p.Total, label)
	if filters := describeSelection(view.Selection); filters != "" {
		fmt.Fprintf(out, "Filters: %s\n", filters)
	}

	if len(p.Eligible) > 0 {
		fmt.Fprintf(out, "\nEligible offers\n")
		for _, c := range p.Eligible {
			renderCard(out, c)
		}
	}
	if len(p.Ineligible) > 0 {
		fmt.Fprintf(out, "\nNot eligible\n")
		for _, c := range p.Ineligible {
			renderCard(out, c)
		}
	}
}

func renderCard(out io.Writer, c offers.Card) {
	o := c.Offer
	name := o.LenderName
	if name == "" {
		name = "Unknown lender"
	}
	badges := ""
	if len(c.Badges) > 0 {
		badges = " [" + strings.Join(c.Badges, "] [") + "]"
	}
	fmt.Fprintf(out, "  %s%s\n", name, badges)

	var facts []string
	add := func(label string, a offers.Amount, suffix string) {
		if a.Present() {
			facts = append(facts, label+" "+a.String()+suffix)
		}
	}
	add("up to ₹", o.LoanOfferedUpto, "")
	add("from", o.MinimumInterestRate, "%")
	add("tenure", o.MaximumLoanTenure, " months")
	add("EMI ₹", o.MonthlyInstallment, "")
	if len(facts) > 0 {
		fmt.Fprintf(out, "    %s\n", strings.Join(facts, " · "))
	}
	if o.ApplyURL != "" && c.Explanation == nil {
		fmt.Fprintf(out, "    Apply: %s\n", o.ApplyURL)
	}
	if c.Explanation != nil {
		fmt.Fprintf(out, "    Why: %s\n    Try: %s\n", c.Explanation.Reason, c.Explanation.Suggestion)
	}
}

func describeSelection(sel offers.Selection) string {
	var parts []string
	if len(sel.Categories) > 0 {
		parts = append(parts, "category "+strings.Join(sel.Categories, ", "))
	}
	if len(sel.FeatureIDs) > 0 {
		parts = append(parts, "feature "+strings.Join(sel.FeatureIDs, ", "))
	}
	return strings.Join(parts, "; ")
}
