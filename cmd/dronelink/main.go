// dronelink is a command line client for the drone control server.
//
// Usage:
//
//	dronelink [options] <command> [args]
//
// Commands:
//
//	register <username> <email>   Create an account (password read from stdin)
//	login <email>                 Authenticate and store tokens
//	logout                        Forget stored tokens
//	drones                        List registered drones
//	register-drone <name> <ip>    Register a drone
//	fly <drone>                   Connect, take off and tail telemetry
//	capture                       Capture one camera frame to disk
//	sessions                      List server-side control sessions
//	end-session <id>              Terminate a control session
//
// Options:
//
//	-config    Path to a TOML config file
//	-endpoint  Control server websocket URL (overrides config)
//	-insecure  Skip TLS certificate verification
//	-store     Path to the encrypted credential store
//	-log-level Console log level (trace, debug, info, warn, error)
//
// The credential store is encrypted with a key derived from the
// DRONELINK_STORE_KEY environment variable.
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/skyward/dronelink/pkg/config"
	"github.com/skyward/dronelink/pkg/logutil"
	"github.com/skyward/dronelink/pkg/session"
	"github.com/skyward/dronelink/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dronelink: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a TOML config file")
		endpoint   = flag.String("endpoint", "", "control server websocket URL")
		insecure   = flag.Bool("insecure", false, "skip TLS certificate verification")
		storePath  = flag.String("store", "", "path to the encrypted credential store")
		logLevel   = flag.String("log-level", "", "console log level")
		height     = flag.Float64("height", 2.0, "takeoff height in meters (fly)")
		overlay    = flag.Bool("overlay", false, "request the lane overlay (capture)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *insecure {
		cfg.InsecureSkipVerify = true
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no command given")
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	st, err := openStore(cfg.StorePath)
	if err != nil {
		return err
	}

	loggerFactory := logutil.NewFactory(os.Stderr, cfg.LogLevel)

	s, err := session.New(session.Config{
		Endpoint:           cfg.Endpoint,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		Store:              st,
		LoggerFactory:      loggerFactory,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := s.Init(ctx); err != nil {
		return err
	}

	switch command {
	case "register":
		if len(args) != 2 {
			return fmt.Errorf("usage: register <username> <email>")
		}
		password, err := readPassword()
		if err != nil {
			return err
		}
		if err := s.Register(ctx, args[0], args[1], password); err != nil {
			return err
		}
		fmt.Println("registered and logged in")
		return nil

	case "login":
		if len(args) != 1 {
			return fmt.Errorf("usage: login <email>")
		}
		password, err := readPassword()
		if err != nil {
			return err
		}
		if err := s.Login(ctx, args[0], password); err != nil {
			return err
		}
		fmt.Println("logged in")
		return nil

	case "logout":
		return s.Logout()
	}

	// Everything below needs an authenticated session.
	if !s.Authenticated() {
		return fmt.Errorf("not logged in; run: dronelink login <email>")
	}

	switch command {
	case "drones":
		drones, err := s.ListDrones(ctx)
		if err != nil {
			return err
		}
		if len(drones) == 0 {
			fmt.Println("no drones registered")
			return nil
		}
		for _, d := range drones {
			fmt.Printf("%s\t%s\n", d.Name, d.IP)
		}
		return nil

	case "register-drone":
		if len(args) != 2 {
			return fmt.Errorf("usage: register-drone <name> <ip>")
		}
		return s.RegisterDrone(ctx, args[0], args[1])

	case "fly":
		if len(args) != 1 {
			return fmt.Errorf("usage: fly <drone>")
		}
		return fly(ctx, s, args[0], *height)

	case "capture":
		image, err := s.CaptureFrame(ctx, *overlay)
		if err != nil {
			return err
		}
		name := uuid.NewString() + ".jpg"
		if err := os.WriteFile(name, image, 0o644); err != nil {
			return err
		}
		fmt.Println(name)
		return nil

	case "sessions":
		sessions, err := s.ListSessions(ctx)
		if err != nil {
			return err
		}
		for _, info := range sessions {
			fmt.Printf("%s\t%s\n", info.SessionID, info.Status)
		}
		return nil

	case "end-session":
		if len(args) != 1 {
			return fmt.Errorf("usage: end-session <id>")
		}
		return s.EndSession(ctx, args[0])

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// fly connects to the named drone, takes off and prints telemetry until
// interrupted, then stops, lands and disconnects.
func fly(ctx context.Context, s *session.Session, drone string, height float64) error {
	id, err := s.ConnectDrone(ctx, drone)
	if err != nil {
		return err
	}
	fmt.Printf("connected to %s (session %s)\n", drone, id)

	if err := s.Takeoff(ctx, height); err != nil {
		return err
	}

	sub, err := s.SubscribeTelemetry(ctx)
	if err != nil {
		return err
	}

	fmt.Println("telemetry (Ctrl-C to land):")
tail:
	for {
		select {
		case tel, ok := <-sub.Events():
			if !ok {
				break tail
			}
			fmt.Printf("alt %6.2fm  pos (%.2f, %.2f)  vel (%.2f, %.2f, %.2f)\n",
				tel.Altitude(),
				tel.Position.X, tel.Position.Y,
				tel.Velocity.X, tel.Velocity.Y, tel.Velocity.Z)
		case <-ctx.Done():
			break tail
		}
	}

	// The interrupt canceled ctx; teardown gets its own context.
	teardown := context.Background()
	if err := sub.Cancel(teardown); err != nil {
		return err
	}
	if err := s.StopFly(teardown); err != nil {
		return err
	}
	if err := s.Land(teardown); err != nil {
		return err
	}
	return s.DisconnectDrone(teardown)
}

func openStore(path string) (store.Store, error) {
	secret := os.Getenv("DRONELINK_STORE_KEY")
	if secret == "" {
		return nil, fmt.Errorf("DRONELINK_STORE_KEY is not set")
	}
	key := sha256.Sum256([]byte(secret))
	return store.OpenFile(path, key[:])
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}
