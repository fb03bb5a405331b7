package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postflow/internal/api"
)

func newPostCommand(ctx *commandContext) *cobra.Command {
	postCmd := &cobra.Command{
		Use:   "post",
		Short: "Schedule, review, and inspect posts",
	}
	postCmd.AddCommand(newPostScheduleCommand(ctx))
	postCmd.AddCommand(newPostListCommand(ctx))
	postCmd.AddCommand(newPostShowCommand(ctx))
	postCmd.AddCommand(newPostEditCommand(ctx))
	postCmd.AddCommand(newPostReviewCommand(ctx, "approve"))
	postCmd.AddCommand(newPostReviewCommand(ctx, "reject"))
	postCmd.AddCommand(newPostAttemptsCommand(ctx))
	return postCmd
}

func newPostScheduleCommand(ctx *commandContext) *cobra.Command {
	var clientID int64
	var mediaRef, caption, hashtags, at string

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Create a pending post for client review",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.ScheduleRequest{ClientID: clientID, MediaRef: mediaRef, Caption: caption, Hashtags: hashtags}
			if strings.TrimSpace(at) != "" {
				when, err := time.Parse(time.RFC3339, strings.TrimSpace(at))
				if err != nil {
					return fmt.Errorf("invalid --at value %q: use RFC 3339, e.g. 2026-05-01T09:00:00Z", at)
				}
				req.ScheduledTime = &when
			}
			return ctx.withSession(func(s *session) error {
				result, err := s.components.Service.Schedule(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scheduled post #%d for client #%d (%s)\n", result.Post.ID, result.Post.ClientID, result.Post.Status)
				for _, warning := range result.Warnings {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Owning client id")
	cmd.Flags().StringVar(&mediaRef, "media", "", "Media reference: path under media_dir or s3://key")
	cmd.Flags().StringVar(&caption, "caption", "", "Post caption")
	cmd.Flags().StringVar(&hashtags, "hashtags", "", "Hashtags separated by spaces or commas")
	cmd.Flags().StringVar(&at, "at", "", "Earliest publish time (RFC 3339)")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("media")
	return cmd
}

func newPostListCommand(ctx *commandContext) *cobra.Command {
	var clientID int64
	var statuses []string
	var limit int
	var newest bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(func(s *session) error {
				items, err := s.components.Service.List(cmd.Context(), api.ListQuery{
					ClientID: clientID,
					Statuses: statuses,
					Limit:    limit,
					Newest:   newest,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, items)
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No posts found")
					return nil
				}
				fmt.Fprintln(out, renderPostTable(items))
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&clientID, "client", 0, "Only posts of this client id")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, approved, rejected, published)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of posts")
	cmd.Flags().BoolVar(&newest, "newest", false, "Newest first")
	return cmd
}

func newPostShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <post-id>",
		Short: "Show a post and its publish attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session) error {
				detail, err := s.components.Service.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, detail)
				}
				out := cmd.OutOrStdout()
				printPostDetail(out, detail.Post)
				if len(detail.Attempts) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderAttemptTable(detail.Attempts))
				}
				return nil
			})
		},
	}
}

func newPostEditCommand(ctx *commandContext) *cobra.Command {
	var caption, hashtags string

	cmd := &cobra.Command{
		Use:   "edit <post-id>",
		Short: "Replace the caption and hashtags of a pending post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session) error {
				current, err := s.components.Service.Describe(cmd.Context(), id)
				if err != nil {
					return err
				}
				req := api.EditRequest{Caption: current.Post.Caption, Hashtags: current.Post.Hashtags}
				if cmd.Flags().Changed("caption") {
					req.Caption = caption
				}
				if cmd.Flags().Changed("hashtags") {
					req.Hashtags = hashtags
				}
				post, err := s.components.Service.Edit(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, post)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated post #%d\n", post.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&caption, "caption", "", "New caption")
	cmd.Flags().StringVar(&hashtags, "hashtags", "", "New hashtags")
	return cmd
}

func newPostReviewCommand(ctx *commandContext, decision string) *cobra.Command {
	var feedback string

	short := "Approve a pending post for publishing"
	if decision == "reject" {
		short = "Reject a pending post"
	}
	cmd := &cobra.Command{
		Use:   decision + " <post-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session) error {
				review := s.components.Service.Approve
				if decision == "reject" {
					review = s.components.Service.Reject
				}
				post, err := review(cmd.Context(), api.Actor{}, id, api.ReviewRequest{Feedback: feedback})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, post)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Post #%d is now %s\n", post.ID, post.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&feedback, "feedback", "f", "", "Reviewer feedback stored with the post")
	return cmd
}

func newPostAttemptsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <post-id>",
		Short: "List publish attempts for a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withSession(func(s *session) error {
				attempts, err := s.components.Service.Attempts(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, attempts)
				}
				out := cmd.OutOrStdout()
				if len(attempts) == 0 {
					fmt.Fprintf(out, "No publish attempts for post #%d\n", id)
					return nil
				}
				fmt.Fprintln(out, renderAttemptTable(attempts))
				return nil
			})
		},
	}
}

func renderPostTable(items []api.Post) string {
	rows := make([][]string, 0, len(items))
	for _, post := range items {
		rows = append(rows, []string{
			strconv.FormatInt(post.ID, 10),
			strconv.FormatInt(post.ClientID, 10),
			post.Status,
			truncate(postTitle(post), 40),
			dash(post.ScheduledTime),
			dash(post.ExternalID),
		})
	}
	return renderTable(
		[]string{"ID", "Client", "Status", "Caption", "Scheduled", "Platform ID"},
		rows,
		[]columnAlignment{alignRight, alignRight},
	)
}

func renderAttemptTable(attempts []api.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, attempt := range attempts {
		result := "failed"
		if attempt.Succeeded {
			result = "ok"
		}
		rows = append(rows, []string{
			strconv.FormatInt(attempt.ID, 10),
			attempt.AttemptedAt,
			result,
			strconv.FormatInt(attempt.DurationMS, 10),
			dash(attempt.ExternalID),
			truncate(dash(attempt.Error), 60),
		})
	}
	return renderTable(
		[]string{"#", "Attempted", "Result", "ms", "Platform ID", "Error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}

func printPostDetail(out io.Writer, post api.Post) {
	fields := [][2]string{
		{"Post", "#" + strconv.FormatInt(post.ID, 10)},
		{"Client", "#" + strconv.FormatInt(post.ClientID, 10)},
		{"Status", post.Status},
		{"Media", post.MediaRef},
		{"Caption", dash(post.Caption)},
		{"Hashtags", dash(post.Hashtags)},
		{"Scheduled", dash(post.ScheduledTime)},
		{"Feedback", dash(post.Feedback)},
		{"Platform ID", dash(post.ExternalID)},
		{"Published", dash(post.PublishedAt)},
		{"Created", dash(post.CreatedAt)},
	}
	for _, field := range fields {
		fmt.Fprintf(out, "%-12s %s\n", field[0]+":", field[1])
	}
}

func postTitle(post api.Post) string {
	if strings.TrimSpace(post.Caption) == "" {
		return fmt.Sprintf("post #%d", post.ID)
	}
	return post.Caption
}
