// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/oneconcern/graphstore/pkg/core"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/spf13/cobra"
)

// commitCmd represents the commit related commands
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commands to manage the history of a project",
}

// newCommit builds a commit on top of some parents, skipping duplicates
func newCommit(parents ...string) (*model.Object, error) {
	seen := make(map[string]struct{}, len(parents))
	unique := make([]string, 0, len(parents))
	for _, parent := range parents {
		if _, ok := seen[parent]; ok || parent == "" {
			continue
		}
		seen[parent] = struct{}{}
		unique = append(unique, parent)
	}
	return model.NewCommit(model.Commit{
		Root:    graphFlags.commit.root,
		Parents: unique,
		Updater: graphFlags.commit.updaters,
		Message: graphFlags.commit.message,
	})
}

var commitCreate = &cobra.Command{
	Use:   "create",
	Short: "Create a commit",
	Long: `Create a commit pointing to the root object of a model, and print its identifier.

With --branch, the current head of the branch becomes the first parent of the commit and the branch
is advanced to the new commit. If another writer moves the branch concurrently, the commit is
rebuilt on top of the new head and the update is retried.`,
	Example: `% graphstore commit create --project model_a --root '#5d0e1f...' --branch master -m "add a pump"
#a2c8d4...`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		if graphFlags.commit.branch == "" {
			o, err := newCommit(graphFlags.commit.parents...)
			if err != nil {
				wrapFatalln("invalid commit", err)
				return
			}
			if err = p.InsertObject(ctx, o); err != nil {
				wrapFatalln("store commit", err)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), o.ID)
			return
		}

		head, err := core.AdvanceBranch(ctx, p, graphFlags.commit.branch, func(current string) (string, error) {
			o, err := newCommit(append([]string{current}, graphFlags.commit.parents...)...)
			if err != nil {
				return "", err
			}
			return o.ID, p.InsertObject(ctx, o)
		}, nil)
		if err != nil {
			wrapFatalln("advance branch", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), head)
	},
}

var commitLog = &cobra.Command{
	Use:   "log",
	Short: "Print the most recent commits of a project",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		before := graphFlags.commit.before
		if before <= 0 {
			before = model.TimeMillis(time.Now()) + 1
		}
		commits, err := p.Commits(ctx, before, graphFlags.commit.max)
		if err != nil {
			wrapFatalln("list commits", err)
			return
		}

		w := cmd.OutOrStdout()
		id, date := color.New(color.FgMagenta), color.New(color.FgYellow)
		for _, c := range commits {
			fmt.Fprint(w, "     ID:  ")
			_, _ = id.Fprintln(w, c.ID)
			if len(c.Parents) > 0 {
				fmt.Fprintf(w, "Parents:  %s\n", strings.Join(c.Parents, ", "))
			}
			if len(c.Updater) > 0 {
				fmt.Fprint(w, "Authors:  ")
				_, _ = date.Fprintln(w, strings.Join(c.Updater, ", "))
			}
			fmt.Fprint(w, "   Date:  ")
			_, _ = date.Fprintln(w, c.Timestamp().Format(time.RFC3339))
			fmt.Fprintln(w)
			if c.Message != "" {
				fmt.Fprintln(w, c.Message)
				fmt.Fprintln(w)
			}
		}
	},
}

var commitAncestor = &cobra.Command{
	Use:   "ancestor <commit> <commit>",
	Short: "Print the most recent common ancestor of two commits",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		ancestor, err := p.CommonAncestorCommit(ctx, args[0], args[1])
		if err != nil {
			wrapFatalln("common ancestor", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), ancestor)
	},
}

func init() {
	markRequired(commitCreate, addRootFlag(commitCreate))
	addParentFlag(commitCreate)
	addUpdaterFlag(commitCreate)
	addMessageFlag(commitCreate)
	addBranchFlag(commitCreate)

	addBeforeFlag(commitLog)
	addMaxFlag(commitLog)

	commitCmd.AddCommand(commitCreate, commitLog, commitAncestor)
	rootCmd.AddCommand(commitCmd)
}
