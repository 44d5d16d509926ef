// Command webdeck serves a remote button deck to browsers on the LAN and runs
// the pressed buttons' actions on this machine.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"webdeck/internal/action"
	"webdeck/internal/api"
	"webdeck/internal/app"
	"webdeck/internal/deck"
	"webdeck/internal/discovery"
	"webdeck/internal/dispatch"
	"webdeck/internal/history"
	"webdeck/internal/hub"
	"webdeck/internal/persist"
	"webdeck/internal/relay"
	"webdeck/internal/settings"
	"webdeck/internal/sound"
	"webdeck/internal/static"
)

type options struct {
	configFile string
	port       int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "webdeck",
		Short: "WebDeck - a button deck served to any browser on the LAN",
		Long: `WebDeck serves a grid of buttons to browsers on the local network. Pressing a
button in the browser runs its action on this machine: launching a program,
opening a URL, sending a hotkey, media and volume control, or playing a sound.

Quick Start:
  webdeck serve             # Start on port 9002
  webdeck address           # Show the URL to open on a phone
  webdeck presets list      # List saved configurations`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Config file (default: webdeck.{toml,yaml,json} in the working directory)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deck server",
		Long: `Start the HTTP and websocket server.

The server provides:
  • The web client at http://HOST:PORT/
  • Websocket sync on / and /ws
  • Admin API under /api and a health check at /healthz

Environment Variables:
  WEBDECK_SERVER_PORT        Server port (default: 9002)
  WEBDECK_DECK_POSTGRES_URL  Store the configuration in PostgreSQL
  WEBDECK_RELAY_REDIS_ADDR   Mirror the deck over Redis pub/sub`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	serveCmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (overrides server.port)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage saved configurations",
	}
	presetsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved presets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPresetsList(cmd, opts)
			},
		},
		&cobra.Command{
			Use:   "save NAME",
			Short: "Save the current configuration as a preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPresetsSave(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "load NAME",
			Short: "Replace the current configuration with a preset",
			Long:  "Replace the current configuration with a preset. A running server picks it up on restart; use the admin API to load a preset live.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPresetsLoad(cmd, opts, args[0])
			},
		},
	)

	addressCmd := &cobra.Command{
		Use:   "address",
		Short: "Print the URL browsers on the LAN should open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAddress(cmd, opts)
		},
	}
	addressCmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port (overrides server.port)")

	rootCmd.AddCommand(serveCmd, presetsCmd, addressCmd)
	return rootCmd
}

func loadSettings(cmd *cobra.Command, opts *options) (settings.Settings, error) {
	s, err := settings.Load(opts.configFile)
	if err != nil {
		return s, err
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		s.Server.Port = opts.port
	}
	return s, nil
}

// openPersister picks PostgreSQL when a URL is configured and the JSON file
// otherwise.
func openPersister(ctx context.Context, s settings.DeckSettings) (deck.Persister, func(), error) {
	if s.PostgresURL != "" {
		pg, err := persist.OpenPostgres(ctx, s.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return persist.NewFile(s.ConfigPath, s.PresetsDir), func() {}, nil
}

func openSound(dir string) action.SoundPlayer {
	p, err := sound.NewPlayer(dir)
	if err != nil {
		log.Printf("[main] audio: %v", err)
	}
	if p == nil {
		log.Println("[main] audio disabled")
		return nil
	}
	return p
}

func runServe(cmd *cobra.Command, opts *options) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	saver, closeSaver, err := openPersister(ctx, s.Deck)
	if err != nil {
		return err
	}
	defer closeSaver()
	d := deck.Open(saver)

	queue := &dispatch.Queue{}
	runner := action.NewRunner(openSound(s.Sound.Dir))

	// The router is built when the hub starts, after handlers is set.
	var handlers *api.Handlers
	h := hub.New(queue, hub.WithRoutes(func(r *mux.Router) { handlers.RegisterRoutes(r) }))

	appOpts := []app.Option{app.WithTick(s.Deck.Tick), app.WithIconsRoot(s.Server.IconsRoot)}
	apiOpts := []api.Option{
		api.WithStatic(static.New(s.Server.WebRoot, s.Server.IconsRoot)),
		api.WithStatus(func() api.Status { return currentStatus(h) }),
	}

	if s.History.Path != "" {
		hist, err := history.Open(s.History.Path)
		if err != nil {
			log.Printf("[main] execution history disabled: %v", err)
		} else {
			defer hist.Close()
			appOpts = append(appOpts, app.WithHistory(hist))
			apiOpts = append(apiOpts, api.WithHistory(hist))
		}
	}

	var rel *relay.Relay
	if s.Relay.RedisAddr != "" {
		rdb, err := relay.Dial(ctx, s.Relay.RedisAddr)
		if err != nil {
			log.Printf("[main] relay disabled: %v", err)
		} else {
			defer rdb.Close()
			rel = relay.New(rdb, s.Relay.Channel, queue)
			appOpts = append(appOpts, app.WithMirror(rel))
		}
	}

	a := app.New(d, queue, runner, h, appOpts...)
	handlers = api.NewHandlers(a, apiOpts...)
	// Clients connecting as soon as the listener is up get an initial_state.
	a.NotifyChanged()

	appDone := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(appDone)
	}()
	if rel != nil {
		go func() {
			if err := rel.Run(ctx); err != nil {
				log.Printf("[main] relay stopped: %v", err)
			}
		}()
	}

	if err := h.Start(s.Server.Port); err != nil {
		stop()
		<-appDone
		return fmt.Errorf("start server: %w", err)
	}

	var ann *discovery.Announcement
	if s.Discovery.Enabled && h.IsRunning() {
		ann, err = discovery.Announce(s.Discovery.Service, h.Port())
		if err != nil {
			log.Printf("[main] %v", err)
		}
	}
	st := currentStatus(h)
	log.Printf("WebDeck running, open %s", st.URL)

	<-ctx.Done()
	log.Println("shutting down")
	ann.Shutdown()
	h.Stop()
	<-appDone
	return nil
}

func currentStatus(h *hub.Hub) api.Status {
	st := api.Status{Running: h.IsRunning(), Port: h.Port(), Clients: h.Clients()}
	ip, err := discovery.LocalIPv4()
	if err == nil {
		st.Address = ip.String()
	}
	st.URL = discovery.ConnectURL(ip, st.Port)
	return st
}

func presetStore(ctx context.Context, s settings.Settings) (deck.Persister, deck.PresetStore, func(), error) {
	saver, closeSaver, err := openPersister(ctx, s.Deck)
	if err != nil {
		return nil, nil, nil, err
	}
	ps, ok := saver.(deck.PresetStore)
	if !ok {
		closeSaver()
		return nil, nil, nil, deck.ErrPresetsDisabled
	}
	return saver, ps, closeSaver, nil
}

func runPresetsList(cmd *cobra.Command, opts *options) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	_, ps, closeSaver, err := presetStore(cmd.Context(), s)
	if err != nil {
		return err
	}
	defer closeSaver()

	names, err := ps.ListPresets()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintln(out, "no presets saved")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(out, name)
	}
	return nil
}

func runPresetsSave(cmd *cobra.Command, opts *options, name string) error {
	if err := deck.ValidatePresetName(name); err != nil {
		return err
	}
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	saver, ps, closeSaver, err := presetStore(cmd.Context(), s)
	if err != nil {
		return err
	}
	defer closeSaver()

	doc, err := saver.Load()
	if err != nil {
		return fmt.Errorf("load current configuration: %w", err)
	}
	if err := ps.SavePreset(name, doc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved preset %q\n", name)
	return nil
}

func runPresetsLoad(cmd *cobra.Command, opts *options, name string) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	saver, _, closeSaver, err := presetStore(cmd.Context(), s)
	if err != nil {
		return err
	}
	defer closeSaver()

	d := deck.Open(saver)
	if err := d.LoadPreset(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded preset %q (%d buttons)\n", name, len(d.Buttons()))
	return nil
}

func runAddress(cmd *cobra.Command, opts *options) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	ip, err := discovery.LocalIPv4()
	if err != nil {
		log.Printf("[main] %v, falling back to localhost", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), discovery.ConnectURL(ip, s.Server.Port))
	return nil
}
