// Command storefrontctl drives the storefront API as a viewer would: it
// hydrates unlock state, buys items and completes checkout returns.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/nyashahama/gallery-paywall-backend/internal/unlock"
	"github.com/nyashahama/gallery-paywall-backend/internal/viewer"
)

type globals struct {
	apiURL    string
	purchaser string
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:          "storefrontctl",
		Short:        "Exercise the gallery paywall from the viewer side",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.apiURL, "api", envOr("STOREFRONT_URL", "http://localhost:8080"), "storefront API base URL")
	root.PersistentFlags().StringVar(&g.purchaser, "purchaser", os.Getenv("PURCHASER_ID"), "purchaser id (auth user UUID); empty for a guest")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log session activity")

	root.AddCommand(
		newConfigCommand(g),
		newEntitlementsCommand(g),
		newBuyCommand(g),
		newLifetimeCommand(g),
		newReturnCommand(g),
	)
	return root
}

func (g *globals) logger() *slog.Logger {
	if !g.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (g *globals) client() *viewer.Client {
	return viewer.NewClient(g.apiURL, g.purchaser)
}

func newConfigCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the public store settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.client().Config(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("publishable key: %s\ncurrency:        %s\nlifetime price:  %s\nupsell delay:    %s\n",
				cfg.PublishableKey, cfg.Currency, cfg.LifetimePrice, cfg.UpsellDelay())
			return nil
		},
	}
}

func newEntitlementsCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "entitlements [ITEM...]",
		Short: "Hydrate unlock state and print it for the given items",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := viewer.NewSession(g.client(), nil, time.Hour, func(string) {}, g.logger())
			defer s.Leave()

			if err := s.Hydrate(cmd.Context()); err != nil {
				return err
			}
			printState(cmd, s.Machine(), args)
			return nil
		},
	}
}

func newBuyCommand(g *globals) *cobra.Command {
	var (
		price    string
		redirect bool
	)
	cmd := &cobra.Command{
		Use:   "buy ITEM",
		Short: "Buy one item; embedded mode confirms with a Stripe test card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			item := args[0]
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("--price must be a number of minor units: %w", err)
			}

			client := g.client()
			cfg, err := client.Config(cmd.Context())
			if err != nil {
				return err
			}

			offered := make(chan string, 1)
			var confirmer viewer.Confirmer
			if !redirect {
				confirmer, err = newTestCardConfirmer(os.Getenv("STRIPE_SECRET_KEY"))
				if err != nil {
					return err
				}
			}
			s := viewer.NewSession(client, confirmer, cfg.UpsellDelay(), func(offeredItem string) {
				select {
				case offered <- offeredItem:
				default:
				}
			}, g.logger())
			defer s.Leave()

			if err := s.Hydrate(cmd.Context()); err != nil {
				return err
			}

			if redirect {
				url, err := s.BuyRedirect(cmd.Context(), item, p)
				if err != nil {
					return err
				}
				cmd.Printf("complete payment at:\n  %s\nthen run: storefrontctl return <session_id>\n", url)
				return nil
			}

			if err := s.BuyEmbedded(cmd.Context(), item, p); err != nil {
				printState(cmd, s.Machine(), []string{item})
				return err
			}
			printState(cmd, s.Machine(), []string{item})

			if s.Machine().Lifetime() {
				return nil
			}
			select {
			case <-offered:
				cmd.Printf("offer: unlock every artwork for %s %s\n", cfg.LifetimePrice, cfg.Currency)
			case <-time.After(cfg.UpsellDelay() + 2*time.Second):
			case <-cmd.Context().Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "displayed price in minor units, e.g. 199")
	cmd.Flags().BoolVar(&redirect, "redirect", false, "use hosted Checkout instead of confirming in place")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func newLifetimeCommand(g *globals) *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   "lifetime",
		Short: "Start a lifetime-access checkout and print its URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := g.client()
			p, err := lifetimePrice(cmd.Context(), client, price)
			if err != nil {
				return err
			}
			s := viewer.NewSession(client, nil, time.Hour, func(string) {}, g.logger())
			defer s.Leave()

			url, err := s.BuyLifetime(cmd.Context(), p)
			if err != nil {
				return err
			}
			cmd.Printf("complete payment at:\n  %s\nthen run: storefrontctl return <session_id>\n", url)
			return nil
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "displayed price in minor units (default: the store's lifetime price)")
	return cmd
}

func newReturnCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "return SESSION_ID [ITEM...]",
		Short: "Complete a Checkout return after the server corroborates payment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := viewer.NewSession(g.client(), nil, time.Hour, func(string) {}, g.logger())
			defer s.Leave()

			if err := s.CompleteRedirect(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Println("payment confirmed")
			printState(cmd, s.Machine(), args[1:])
			return nil
		},
	}
}

func lifetimePrice(ctx context.Context, client *viewer.Client, flag string) (decimal.Decimal, error) {
	if flag != "" {
		p, err := decimal.NewFromString(flag)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("--price must be a number of minor units: %w", err)
		}
		return p, nil
	}
	cfg, err := client.Config(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(cfg.LifetimePriceMinor), nil
}

func printState(cmd *cobra.Command, m *unlock.Machine, items []string) {
	if m.Lifetime() {
		cmd.Println("lifetime access: every item unlocked")
	}
	for _, id := range items {
		st := m.Item(id)
		if st.Err != "" {
			cmd.Printf("%-24s %s (%s)\n", id, st.State, st.Err)
			continue
		}
		cmd.Printf("%-24s %s\n", id, st.State)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
