package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/toolproto/mcpc"
	"github.com/toolproto/mcpc/schema"
)

// Options drives the CLI: connection settings plus one action.
type Options struct {
	mcpc.ClientOptions

	ListTools     bool   `long:"list-tools" description:"list the server tools"`
	ListResources bool   `long:"list-resources" description:"list the server resources"`
	ListPrompts   bool   `long:"list-prompts" description:"list the server prompts"`
	CallTool      string `long:"call" description:"call a tool by name"`
	Args          string `long:"args" description:"tool arguments as JSON"`
	ReadResource  string `long:"read" description:"read a resource by URI"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	options := &Options{}
	if _, err := flags.ParseArgs(options, args); err != nil {
		return err
	}
	cli, err := mcpc.NewClient(&options.ClientOptions)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := cli.Connect(ctx); err != nil {
		return err
	}
	defer cli.Close()

	switch {
	case options.ListTools:
		tools, err := cli.Tools(ctx)
		if err != nil {
			return err
		}
		for _, tool := range tools {
			fmt.Printf("%s\t%s\n", tool.Name, tool.Description)
		}
	case options.ListResources:
		resources, err := cli.Resources(ctx)
		if err != nil {
			return err
		}
		for _, resource := range resources {
			fmt.Printf("%s\t%s\n", resource.URI, resource.Name)
		}
	case options.ListPrompts:
		prompts, err := cli.Prompts(ctx)
		if err != nil {
			return err
		}
		for _, prompt := range prompts {
			fmt.Printf("%s\t%s\n", prompt.Name, prompt.Description)
		}
	case options.CallTool != "":
		params := &schema.CallToolRequestParams{Name: options.CallTool}
		if options.Args != "" {
			if err := json.Unmarshal([]byte(options.Args), &params.Arguments); err != nil {
				return fmt.Errorf("invalid --args: %w", err)
			}
		}
		result, err := cli.CallTool(ctx, params)
		if err != nil {
			return err
		}
		return printJSON(result)
	case options.ReadResource != "":
		result, err := cli.ReadResource(ctx, &schema.ReadResourceRequestParams{URI: options.ReadResource})
		if err != nil {
			return err
		}
		return printJSON(result)
	default:
		return fmt.Errorf("no action requested, try --list-tools")
	}
	return nil
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
