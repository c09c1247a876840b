package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"forwardlab/internal/platform/logger"
	"forwardlab/internal/storage"
	labapi "forwardlab/pkg/forwardlab"
)

const defaultDBPath = "forwardlab.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "steps":
		return runSteps(ctx, args[1:])
	case "new":
		return runNew(ctx, args[1:])
	case "state":
		return runState(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "sessions":
		return runSessions(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	storeKind *string
	dbPath    *string
	logMode   *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDBPath, "sqlite database path"),
		logMode:   fs.String("log-mode", "auto", "log mode: auto|dev|prod|off"),
	}
}

func (f storeFlags) open(ctx context.Context) (*labapi.Client, *logger.Logger, error) {
	log, err := newLogger(*f.logMode)
	if err != nil {
		return nil, nil, err
	}
	client, err := labapi.New(labapi.Options{StoreKind: *f.storeKind, DBPath: *f.dbPath, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, log, nil
}

// newLogger resolves "auto" to the development encoder on a terminal and JSON
// otherwise.
func newLogger(mode string) (*logger.Logger, error) {
	switch mode {
	case "off":
		return logger.Nop(), nil
	case "auto", "":
		fd := os.Stderr.Fd()
		if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
			mode = "dev"
		} else {
			mode = "prod"
		}
	}
	return logger.New(mode)
}

func runSteps(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("steps", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit steps and parameters as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	lesson := labapi.NewLesson()
	if *jsonOut {
		return writeJSON(map[string]any{
			"architecture": lesson.Architecture(),
			"parameters":   lesson.Parameters(),
			"steps":        lesson.Steps(),
		})
	}

	fmt.Printf("architecture=%s\n", formatArchitecture(lesson.Architecture()))
	for _, p := range lesson.Parameters() {
		fmt.Printf("parameter=%s label=%q shape=%q value=%s\n", p.ID, p.Label, p.Description, formatMatrix(p.Value))
	}
	for i, step := range lesson.Steps() {
		fmt.Printf("%s step=%s kind=%s requires=%s label=%q expected=%s\n",
			humanize.Ordinal(i+1), step.ID, step.Kind, orDash(string(step.Requires)), step.Label, formatMatrix(step.Expected))
	}
	return nil
}

func runNew(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, log, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client, log)

	id, snap, err := client.NewSession(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("session=%s store=%s\n", id, *sf.storeKind)
	printSnapshot(snap)
	return nil
}

func runState(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("state", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	id := fs.String("id", "", "session id")
	jsonOut := fs.Bool("json", false, "emit snapshot as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("state requires --id")
	}

	client, log, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client, log)

	snap, err := client.State(ctx, *id)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(snap)
	}
	printSnapshot(snap)
	return nil
}

func runValidate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	id := fs.String("id", "", "session id")
	step := fs.String("step", "", "step id, e.g. calc-z1")
	rawMatrix := fs.String("matrix", "", `candidate matrix as JSON, e.g. "[[0.09,0.5,-0.12,0.07]]"`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *step == "" {
		return errors.New("validate requires --id and --step")
	}
	candidate, err := parseMatrix(*rawMatrix)
	if err != nil {
		return err
	}

	client, log, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client, log)

	result, snap, err := client.Validate(ctx, *id, labapi.StepID(*step), candidate)
	if err != nil {
		return err
	}
	fmt.Printf("step=%s accepted=%t status=%s cell_errors=%s\n", result.Step, result.Accepted, result.Status, formatCellErrors(result.CellErrors))
	printSnapshot(snap)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	id := fs.String("id", "", "session id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("reset requires --id")
	}

	client, log, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client, log)

	snap, err := client.Reset(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("reset session=%s\n", *id)
	printSnapshot(snap)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	id := fs.String("id", "", "session id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("delete requires --id")
	}

	client, log, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client, log)

	if err := client.DeleteSession(ctx, *id); err != nil {
		return err
	}
	fmt.Printf("deleted session=%s\n", *id)
	return nil
}

func runSessions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max sessions to list")
	jsonOut := fs.Bool("json", false, "emit sessions as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, log, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer closeClient(client, log)

	summaries, err := client.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(summaries) > *limit {
		summaries = summaries[len(summaries)-*limit:]
	}
	if *jsonOut {
		return writeJSON(summaries)
	}
	if len(summaries) == 0 {
		fmt.Println("no sessions found")
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("session=%s completed=%d/%d active=%s finished=%t attempts=%d created=%s updated=%s\n",
			s.ID, s.Completed, s.Total, s.Active, s.Finished, s.Attempts,
			humanize.Time(s.CreatedAt), humanize.Time(s.UpdatedAt))
	}
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional serve config path (.json, .yaml or .yml)")
	addr := fs.String("addr", defaultAddress, "listen address")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	logMode := fs.String("log-mode", "auto", "log mode: auto|dev|prod|off")
	allowOrigins := fs.String("allow-origins", "", "comma-separated CORS origins")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := defaultServeConfig()
	if *configPath != "" {
		loaded, err := loadServeConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	if err := overrideFromFlags(&cfg, set, map[string]any{
		"addr":          *addr,
		"store":         *storeKind,
		"db-path":       *dbPath,
		"log-mode":      *logMode,
		"allow-origins": *allowOrigins,
	}); err != nil {
		return err
	}

	log, err := newLogger(cfg.LogMode)
	if err != nil {
		return err
	}
	client, err := labapi.New(labapi.Options{StoreKind: cfg.StoreKind, DBPath: cfg.DBPath, Logger: log})
	if err != nil {
		return err
	}
	defer closeClient(client, log)
	if err := client.Init(ctx); err != nil {
		return err
	}

	log.Info("serving lesson", "address", cfg.Address, "store", cfg.StoreKind)
	return client.Serve(ctx, cfg.Address, cfg.AllowOrigins)
}

func closeClient(client *labapi.Client, log *logger.Logger) {
	if err := client.Close(); err != nil {
		log.Warn("close store failed", "error", err)
	}
	log.Sync()
}

func parseMatrix(raw string) (labapi.Matrix, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("matrix is required")
	}
	var m labapi.Matrix
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parse matrix: %w", err)
	}
	return m, nil
}

func printSnapshot(snap labapi.Snapshot) {
	fmt.Printf("active=%s progress=%d finished=%t\n", snap.Active, snap.Progress, snap.Finished)
	for _, step := range snap.Steps {
		fmt.Printf("step=%s status=%s editable=%t\n", step.ID, step.Status, step.Editable)
	}
}

func formatArchitecture(layers []int) string {
	parts := make([]string, len(layers))
	for i, n := range layers {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, "-")
}

func formatMatrix(m labapi.Matrix) string {
	rows := make([]string, len(m))
	for i, row := range m {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = humanize.FtoaWithDigits(v, 4)
		}
		rows[i] = "[" + strings.Join(cells, " ") + "]"
	}
	return "[" + strings.Join(rows, " ") + "]"
}

func formatCellErrors(grid [][]bool) string {
	var b strings.Builder
	for i, row := range grid {
		if i > 0 {
			b.WriteByte('/')
		}
		for _, bad := range row {
			if bad {
				b.WriteByte('x')
			} else {
				b.WriteByte('.')
			}
		}
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: forwardlabctl <steps|new|state|validate|reset|delete|sessions|serve> [flags]", msg)
}
