package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// projectCmd represents the project related commands
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Commands to manage projects",
	Long: `Commands to manage projects.

A project is a namespace of objects and branches. Project names are made of letters, digits and underscores.`,
}

var projectList = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Long:  `List the names of all projects of the database`,
	Example: `% graphstore project list
model_a
model_b`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db, closer, err := openDatabase(ctx)
		if err != nil {
			wrapFatalln("open database", err)
			return
		}
		defer closer()

		names, err := db.ProjectNames(ctx)
		if err != nil {
			wrapFatalln("list projects", err)
			return
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

var projectCreate = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db, closer, err := openDatabase(ctx)
		if err != nil {
			wrapFatalln("open database", err)
			return
		}
		defer closer()

		p, err := db.CreateProject(ctx, args[0])
		if err != nil {
			wrapFatalln("create project", err)
			return
		}
		_ = p.Close()
	},
}

var projectDelete = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project",
	Long:  `Delete a project with all its objects and branches. Deleting a project which does not exist is not an error.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		db, closer, err := openDatabase(ctx)
		if err != nil {
			wrapFatalln("open database", err)
			return
		}
		defer closer()

		if err = db.DeleteProject(ctx, args[0]); err != nil {
			wrapFatalln("delete project", err)
			return
		}
	},
}

func init() {
	projectCmd.AddCommand(projectList, projectCreate, projectDelete)
	rootCmd.AddCommand(projectCmd)
}
