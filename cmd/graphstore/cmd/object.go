package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/spf13/cobra"
)

// objectCmd represents the object related commands
var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Commands to manage the objects of a project",
	Long: `Commands to manage the objects of a project.

Objects are immutable JSON documents. Their identifier is the hash of their content.`,
}

func readDocument(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}

var objectPut = &cobra.Command{
	Use:   "put",
	Short: "Store a JSON document",
	Long:  `Store a JSON document in the project and print its identifier. An "_id" field in the document is replaced by the content hash.`,
	Example: `% echo '{"type":"node","name":"pump"}' | graphstore object put --project model_a
#5d0e1f...`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		raw, err := readDocument(cmd, graphFlags.object.file)
		if err != nil {
			wrapFatalln("read document", err)
			return
		}
		o, err := model.NewObject(raw)
		if err != nil {
			wrapFatalln("invalid document", err)
			return
		}

		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		if err = p.InsertObject(ctx, o); err != nil {
			wrapFatalln("store object", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), o.ID)
	},
}

var objectGet = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored JSON document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		p, closer, err := openProject(ctx)
		if err != nil {
			wrapFatalln("open project", err)
			return
		}
		defer closer()

		o, err := p.LoadObject(ctx, args[0])
		if err != nil {
			wrapFatalln("load object", err)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(o.Body()))
	},
}

func init() {
	addFileFlag(objectPut)
	objectCmd.AddCommand(objectPut, objectGet)
	rootCmd.AddCommand(objectCmd)
}
