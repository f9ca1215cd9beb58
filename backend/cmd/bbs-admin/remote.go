package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/itchan-dev/bbs/backend/internal/apiclient"
	"github.com/itchan-dev/bbs/shared/api"
	"github.com/spf13/cobra"
)

// remoteCommand groups commands that go through the HTTP API as the subject
// of --token, so locks apply exactly as for any other client.
func remoteCommand() *cobra.Command {
	var server, token string
	remote := &cobra.Command{
		Use:   "remote",
		Short: "Talk to a running server through its API",
	}
	remote.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "server base url")
	remote.PersistentFlags().StringVar(&token, "token", os.Getenv("BBS_TOKEN"), "access token, defaults to $BBS_TOKEN")
	client := func() *apiclient.APIClient {
		return apiclient.New(server, token)
	}

	remote.AddCommand(&cobra.Command{
		Use:   "boards",
		Short: "List boards with unread counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			boards, err := client().Boards(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range boards {
				fmt.Printf("%-6s %-3s %-24s %5d posts %5d unread  %s\n", b.Alias, b.Membership, b.Name, b.Posts, b.Unread, b.Flags)
			}
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:   "read [board] [selector]",
		Short: "Print posts picked by a selector and mark them read",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := client().Read(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			for _, p := range list.Posts {
				printPost(p)
			}
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:   "catchup [boards...|all]",
		Short: "Mark every post of the given boards read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client().CatchUp(cmd.Context(), args...)
			if err != nil {
				return err
			}
			for alias, n := range result.Marked {
				fmt.Printf("%s: %d posts marked read\n", alias, n)
			}
			if len(result.Mandatory) > 0 {
				fmt.Printf("Mandatory boards with unread posts: %s\n", strings.Join(result.Mandatory, ", "))
			}
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "List unread post numbers on every board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scan, err := client().Scan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(formatScan(scan))
			return nil
		},
	})

	remote.AddCommand(&cobra.Command{
		Use:     "next",
		Aliases: []string{"new"},
		Short:   "Print the first unread post and mark it read",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := client().Next(cmd.Context())
			if err != nil {
				return err
			}
			printPost(next.Post)
			return nil
		},
	})

	return remote
}

func printPost(p api.PostResponse) {
	fmt.Printf("[%s] %s by %s, %s\n%s\n\n", p.Ref, p.Subject, p.Author, p.ModifiedAt.Format("2006-01-02 15:04"), p.Body)
}

// formatScan groups the boards under their category headings.
func formatScan(scan api.ScanResponse) string {
	if scan.Total == 0 {
		return "No unread posts to scan for!\n"
	}
	var b strings.Builder
	category := ""
	for _, board := range scan.Boards {
		if board.Board.Category != category {
			category = board.Board.Category
			fmt.Fprintf(&b, "== %s ==\n", category)
		}
		nums := make([]string, len(board.Posts))
		for i, n := range board.Posts {
			nums[i] = strconv.Itoa(n)
		}
		fmt.Fprintf(&b, "%s (%s): %d Unread: (%s)\n", board.Board.Name, board.Board.Alias, board.Unread, strings.Join(nums, ", "))
	}
	fmt.Fprintf(&b, "Total Unread: %d\n", scan.Total)
	return b.String()
}
