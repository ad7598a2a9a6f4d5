// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// branchCmd represents the branch related commands
var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "Commands to manage the branches of a project",
	Long: `Commands to manage the branches of a project.

A branch points to a commit. Moving a branch requires the commit it currently points to:
the update fails if another writer moved the branch in the meantime.`,
}

var branchList = &cobra.Command{
	Use:   "list",
	Short: "List the branches of a project",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		branches, err := p.Branches(ctx)
		if err != nil {
			wrapFatalln("list branches", err)
			return
		}
		names := make([]string, 0, len(branches))
		for name := range branches {
			names = append(names, name)
		}
		sort.Strings(names)

		w := cmd.OutOrStdout()
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", color.YellowString(name), branches[name])
		}
	},
}

var branchGet = &cobra.Command{
	Use:   "get <name>",
	Short: "Print the commit a branch points to",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		hash, err := p.BranchHash(ctx, args[0], "")
		if err != nil {
			wrapFatalln("get branch", err)
			return
		}
		if hash == "" {
			wrapFatalln(fmt.Sprintf("branch %q does not exist", args[0]), nil)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
	},
}

var branchSet = &cobra.Command{
	Use:   "set <name>",
	Short: "Move a branch to another commit",
	Long:  `Move a branch to another commit, provided it currently points to the commit given by --old. An empty --old creates the branch.`,
	Example: `% graphstore branch set master --project model_a --old '' --new '#5d0e1f...'`,
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		if err = p.SetBranchHash(ctx, args[0], graphFlags.branch.old, graphFlags.branch.new); err != nil {
			wrapFatalln("set branch", err)
			return
		}
	},
}

var branchDelete = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a branch",
	Long:  `Delete a branch, provided it currently points to the commit given by --old.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		if err = p.SetBranchHash(ctx, args[0], graphFlags.branch.old, ""); err != nil {
			wrapFatalln("delete branch", err)
			return
		}
	},
}

func init() {
	addOldHashFlag(branchSet)
	markRequired(branchSet, addNewHashFlag(branchSet))
	markRequired(branchDelete, addOldHashFlag(branchDelete))

	branchCmd.AddCommand(branchList, branchGet, branchSet, branchDelete)
	rootCmd.AddCommand(branchCmd)
}
