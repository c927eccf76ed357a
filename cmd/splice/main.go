// Package main is the entry point for the splice command: it expands and
// evaluates library files locally and serves them over REST, gRPC and the
// web UI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/lemonberrylabs/splice/pkg/api"
	grpcapi "github.com/lemonberrylabs/splice/pkg/api/grpc"
	"github.com/lemonberrylabs/splice/pkg/catalog"
	"github.com/lemonberrylabs/splice/pkg/inline"
	"github.com/lemonberrylabs/splice/pkg/runtime"
	"github.com/lemonberrylabs/splice/pkg/stdlib"
	"github.com/lemonberrylabs/splice/pkg/store"
	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/web"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:           "splice",
	Short:         "Expression-tree inliner for function libraries",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve libraries over REST, gRPC and the web UI",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var expandCmd = &cobra.Command{
	Use:   "expand FILE [EXPRESSION]",
	Short: "Print library functions, or an expression, with splice points expanded",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  expand,
}

var evalCmd = &cobra.Command{
	Use:   "eval FILE",
	Short: "Evaluate the main function of a library",
	Args:  cobra.ExactArgs(1),
	RunE:  evaluate,
}

func init() {
	rootCmd.Version = version + " (commit=" + commit + ", built=" + date + ")"
	rootCmd.SetVersionTemplate("splice version {{.Version}}\n")
	rootCmd.PersistentFlags().Int("max-depth", 0, "Maximum splice nesting depth (default 256, env SPLICE_MAX_DEPTH)")

	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serveCmd.Flags().String("project", "", "Project ID for API paths (default my-project, env PROJECT)")
	serveCmd.Flags().String("location", "", "Location for API paths (default us-central1, env LOCATION)")
	serveCmd.Flags().String("libraries-dir", "", "Directory of library YAML/JSON files to deploy at startup (env LIBRARIES_DIR)")
	serveCmd.Flags().Bool("access-log", false, "Log every HTTP request")

	evalCmd.Flags().String("arg", "", "JSON argument passed to main")

	rootCmd.AddCommand(serveCmd, expandCmd, evalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func maxDepth(cmd *cobra.Command) int {
	if v, _ := cmd.Flags().GetInt("max-depth"); v > 0 {
		return v
	}
	return env.Int("SPLICE_MAX_DEPTH", inline.DefaultMaxDepth)
}

func stringFlag(cmd *cobra.Command, flag, key, fallback string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	return env.Str(key, fallback)
}

func intFlag(cmd *cobra.Command, flag, key string, fallback int) int {
	if v, _ := cmd.Flags().GetInt(flag); v != 0 {
		return v
	}
	return env.Int(key, fallback)
}

func serve(cmd *cobra.Command, args []string) error {
	port := intFlag(cmd, "port", "PORT", 8787)
	grpcPort := intFlag(cmd, "grpc-port", "GRPC_PORT", 8788)
	host := stringFlag(cmd, "host", "HOST", "0.0.0.0")
	project := stringFlag(cmd, "project", "PROJECT", "my-project")
	location := stringFlag(cmd, "location", "LOCATION", "us-central1")
	librariesDir := stringFlag(cmd, "libraries-dir", "LIBRARIES_DIR", "")
	accessLog, _ := cmd.Flags().GetBool("access-log")

	addr := fmt.Sprintf("%s:%d", host, port)
	grpcAddr := fmt.Sprintf("%s:%d", host, grpcPort)

	cat := catalog.New(store.New(), catalog.WithMaxDepth(maxDepth(cmd)))

	var opts []api.Option
	if accessLog {
		opts = append(opts, api.WithAccessLog())
	}
	server := api.New(cat, opts...)

	if librariesDir != "" {
		if _, err := server.LoadDir(librariesDir, project, location); err != nil {
			log.Printf("Warning: failed to load libraries directory: %v", err)
		}
	}

	web.New(cat, project, location).Register(server.App())

	grpcServer := grpcapi.New(cat)
	go func() {
		log.Printf("gRPC server listening on %s", grpcAddr)
		if err := grpcServer.Serve(grpcAddr); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("splice listening on %s (project=%s, location=%s)", addr, project, location)
	return server.Listen(addr)
}

func loadLibrary(cmd *cobra.Command, path string) (*runtime.Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cat := catalog.New(store.New(), catalog.WithMaxDepth(maxDepth(cmd)))
	return cat.Compile(string(data))
}

func expand(cmd *cobra.Command, args []string) error {
	lib, err := loadLibrary(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 2 {
		n, err := lib.Expand(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, tree.Format(n))
		return nil
	}

	for _, fn := range lib.Functions() {
		expanded, err := lib.Inliner().ExpandLambda(fn)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", fn.Name, err)
			continue
		}
		fmt.Fprintf(out, "%s = %s\n", fn.Name, tree.Format(expanded))
	}
	return nil
}

func evaluate(cmd *cobra.Command, args []string) error {
	lib, err := loadLibrary(cmd, args[0])
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetString("arg")
	arg, err := api.ParseArgument(raw)
	if err != nil {
		return err
	}

	result, err := runtime.NewEngine(lib, stdlib.NewRegistry()).Run(context.Background(), arg)
	if err != nil {
		return err
	}
	b, err := result.Value.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
