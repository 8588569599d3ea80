package report

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
)

// Command creates the report command with its analytics subcommands
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Query warehouse analytics",
	}

	cmd.AddCommand(
		channelCommand(settings),
		productsCommand(settings),
		visualCommand(settings),
		searchCommand(settings),
	)
	return cmd
}

func withStore(settings *conf.Settings, fn func(store datastore.Interface) error) error {
	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no output store enabled in settings")
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func channelCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "channel [name]",
		Short: "Show posting activity for one channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				activity, err := store.ChannelActivity(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("channel:      %s (%s)\n", activity.ChannelName, activity.ChannelType)
				fmt.Printf("posts:        %d (%d with image)\n", activity.TotalPosts, activity.PostsWithImage)
				fmt.Printf("avg views:    %.1f\n", activity.AvgViews)
				fmt.Printf("avg forwards: %.1f\n", activity.AvgForwards)
				if !activity.FirstPostDate.IsZero() {
					fmt.Printf("active:       %s to %s (%d days)\n",
						activity.FirstPostDate.Format(conf.DateLayout),
						activity.LastPostDate.Format(conf.DateLayout),
						activity.ActiveDaySpan)
				}
				return nil
			})
		},
	}
}

func productsCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "Summarize message counts and engagement by product type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				summaries, err := store.ProductTypeSummary()
				if err != nil {
					return err
				}
				fmt.Printf("%-12s %8s %10s %8s\n", "product", "messages", "avg views", "w/price")
				for _, s := range summaries {
					fmt.Printf("%-12s %8d %10.1f %8d\n", s.ProductType, s.MessageCount, s.AvgViews, s.PriceMentions)
				}
				return nil
			})
		},
	}
}

func visualCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "visual",
		Short: "Summarize image detection results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				stats, err := store.VisualContentStats()
				if err != nil {
					return err
				}
				fmt.Printf("images:         %d\n", stats.TotalImages)
				fmt.Printf("avg detections: %.2f\n", stats.AvgDetections)
				fmt.Printf("avg confidence: %.2f\n", stats.AvgConfidence)
				fmt.Printf("with person:    %d\n", stats.ImagesWithPerson)
				fmt.Printf("with product:   %d\n", stats.ImagesWithProduct)
				for _, cc := range stats.CategoryCounts {
					fmt.Printf("  %-18s %d\n", cc.Category, cc.Count)
				}
				return nil
			})
		},
	}
}

func searchCommand(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search message text in the fact table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				facts, err := store.SearchMessages(args[0], limit)
				if err != nil {
					return err
				}
				for _, f := range facts {
					text := f.MessageText
					if len(text) > 80 {
						text = text[:80] + "..."
					}
					fmt.Printf("%d [views=%d %s] %s\n", f.MessageID, f.ViewCount, f.ProductType, text)
				}
				fmt.Printf("%d messages\n", len(facts))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", viper.GetInt("report.searchlimit"), "Maximum number of results")
	return cmd
}
