package cmd

import (
	"github.com/spf13/cobra"
)

type flagsT struct {
	object struct {
		file string
	}
	branch struct {
		old string
		new string
	}
	commit struct {
		root     string
		parents  []string
		updaters []string
		message  string
		branch   string
		before   int64
		max      int
	}
}

var graphFlags = flagsT{}

func addFileFlag(cmd *cobra.Command) string {
	file := "file"
	cmd.Flags().StringVarP(&graphFlags.object.file, file, "f", "-", "The JSON document to store. Use - to read from standard input")
	return file
}

func addOldHashFlag(cmd *cobra.Command) string {
	old := "old"
	cmd.Flags().StringVar(&graphFlags.branch.old, old, "", "The commit the branch is expected to point to. Empty if the branch does not exist")
	return old
}

func addNewHashFlag(cmd *cobra.Command) string {
	newHash := "new"
	cmd.Flags().StringVar(&graphFlags.branch.new, newHash, "", "The commit the branch should point to")
	return newHash
}

func addRootFlag(cmd *cobra.Command) string {
	root := "root"
	cmd.Flags().StringVar(&graphFlags.commit.root, root, "", "The identifier of the root object of the model")
	return root
}

func addParentFlag(cmd *cobra.Command) string {
	parent := "parent"
	cmd.Flags().StringSliceVar(&graphFlags.commit.parents, parent, nil, "The parent commits. May be repeated")
	return parent
}

func addUpdaterFlag(cmd *cobra.Command) string {
	updater := "updater"
	cmd.Flags().StringSliceVar(&graphFlags.commit.updaters, updater, nil, "The authors of the commit. May be repeated")
	return updater
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVarP(&graphFlags.commit.message, message, "m", "", "The message describing the commit")
	return message
}

func addBranchFlag(cmd *cobra.Command) string {
	branch := "branch"
	cmd.Flags().StringVarP(&graphFlags.commit.branch, branch, "b", "", "The branch to advance to the new commit")
	return branch
}

func addBeforeFlag(cmd *cobra.Command) string {
	before := "before"
	cmd.Flags().Int64Var(&graphFlags.commit.before, before, 0, "Only list commits older than this time, in milliseconds since the epoch. Defaults to now")
	return before
}

func addMaxFlag(cmd *cobra.Command) string {
	maxCount := "max"
	cmd.Flags().IntVarP(&graphFlags.commit.max, maxCount, "n", 20, "The maximum number of commits to list")
	return maxCount
}

func markRequired(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		if err := cmd.MarkFlagRequired(flag); err != nil {
			logFatalln(err)
		}
	}
}
