// timebook-web serves a timebook user's sheets as a small dashboard
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/go-while/go-timebook-web/internal/config"
	"github.com/go-while/go-timebook-web/internal/logging"
	"github.com/go-while/go-timebook-web/internal/web"
	"github.com/spf13/cobra"
)

var Prof *prof.Profiler

var appVersion = "-unset-"

const shutdownTimeout = 10 * time.Second

func main() {
	config.AppVersion = appVersion
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "timebook-web",
		Short:         "Web dashboard for timebook timesheets",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newServeCmd(),
		newHashPasswordCmd(),
		newStatusCmd(),
		newInitDBCmd(),
		newVersionCmd(),
	)
	return root
}

type serveOptions struct {
	port       int
	ssl        bool
	certFile   string
	keyFile    string
	configFile string
	pprofAddr  string
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(cmd, opts)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	f := cmd.Flags()
	f.IntVar(&opts.port, "port", config.DefaultListenPort, "listen port")
	f.BoolVar(&opts.ssl, "ssl", false, "serve HTTPS")
	f.StringVar(&opts.certFile, "cert", "", "SSL certificate file (/path/to/fullchain.pem)")
	f.StringVar(&opts.keyFile, "key", "", "SSL key file (/path/to/privkey.pem)")
	f.StringVar(&opts.configFile, "config", "", "TOML server config (default: $TIMEBOOK_WEB_CONFIG)")
	f.StringVar(&opts.pprofAddr, "pprof", "", "serve pprof and write memory profiles, e.g. :51111")
}

// loadServeConfig merges the config file, environment and the flags the
// user actually set
func loadServeConfig(cmd *cobra.Command, opts *serveOptions, env config.Env) (*config.WebConfig, error) {
	path := opts.configFile
	if path == "" {
		path = env.ConfigFile
	}
	webConfig, err := config.LoadWebConfig(path)
	if err != nil {
		return nil, err
	}
	f := cmd.Flags()
	if f.Changed("port") {
		webConfig.ListenPort = opts.port
		log.Printf("[WEB]: Overriding listen port with command-line flag: %d", webConfig.ListenPort)
	}
	if f.Changed("ssl") {
		webConfig.SSL = opts.ssl
	}
	if f.Changed("cert") {
		webConfig.CertFile = opts.certFile
	}
	if f.Changed("key") {
		webConfig.KeyFile = opts.keyFile
	}
	if f.Changed("pprof") {
		webConfig.PprofAddr = opts.pprofAddr
	}
	if err := webConfig.Validate(); err != nil {
		return nil, err
	}
	return webConfig, nil
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	logging.Setup(env.LogFile)
	defer logging.Close()
	gin.DefaultWriter = logging.Writer()
	gin.DefaultErrorWriter = logging.Writer()

	webConfig, err := loadServeConfig(cmd, opts, env)
	if err != nil {
		return err
	}
	log.Printf("Starting timebook-web (version: %s)", config.AppVersion)
	log.Printf("[WEB]: port: %d, ssl: %t, auth: %t, user: %q", webConfig.ListenPort, webConfig.SSL, webConfig.AuthEnabled(), env.User)

	if webConfig.PprofAddr != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(webConfig.PprofAddr)
		Prof.StartMemProfile(5*time.Minute, 30*time.Second)
	}

	server, err := web.NewServer(webConfig, env)
	if err != nil {
		return fmt.Errorf("create web server: %w", err)
	}
	if webConfig.Debug {
		files, _ := web.ListEmbeddedFiles()
		log.Printf("[WEB]: embedded static files: %v", files)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	webServerErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			webServerErrChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Printf("[WEB]: Received shutdown signal, initiating graceful shutdown...")
	case err := <-webServerErrChan:
		return fmt.Errorf("web server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("[WEB]: Graceful shutdown completed")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "timebook-web %s\n", config.AppVersion)
		},
	}
}
