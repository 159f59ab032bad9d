package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"osce-station/internal/app"
	"osce-station/internal/casefile"
	"osce-station/internal/config"
	"osce-station/internal/report"
	"osce-station/internal/station"
)

var rootCmd = &cobra.Command{
	Use:           "station",
	Short:         "station - simulated OSCE patient station",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one station in the terminal, reading the candidate from stdin",
	RunE:  runStation,
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Manage case files",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the cases under the cases directory",
	RunE:  runCasesList,
}

var casesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy the cases directory into the database",
	RunE:  runCasesImport,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runMigrate,
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Read archived feedback reports",
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print one archived report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportsShow,
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reports for a case",
	RunE:  runReportsList,
}

var (
	caseFlag    string
	publishFlag bool
	limitFlag   int
)

func init() {
	runCmd.Flags().StringVarP(&caseFlag, "case", "c", "", "Case id, station name or diagnosis")
	runCmd.Flags().BoolVar(&publishFlag, "publish", false, "Archive and send the report when finished")
	_ = runCmd.MarkFlagRequired("case")

	reportsListCmd.Flags().StringVarP(&caseFlag, "case", "c", "", "Case id")
	reportsListCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Maximum reports to list")
	_ = reportsListCmd.MarkFlagRequired("case")

	casesCmd.AddCommand(casesListCmd, casesImportCmd)
	reportsCmd.AddCommand(reportsShowCmd, reportsListCmd)
	rootCmd.AddCommand(runCmd, casesCmd, migrateCmd, reportsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runStation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	c, err := station.LoadCase(ctx, a.Cases, caseFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Station: %s\nPatient: %s, %s\n\n", c.StationName, c.Name, c.PresentingComplaint)

	input := station.NewQueueInput(16)
	defer input.Close()
	go feedLines(ctx, cmd.InOrStdin(), input)

	engine := a.NewEngine(input, consoleSpeech{w: out})
	r, err := engine.Run(ctx, station.NewSession(c))
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, r.Text())

	if publishFlag {
		if err := a.Publisher.Publish(ctx, r); err != nil {
			return fmt.Errorf("publish report: %w", err)
		}
	}
	return nil
}

// consoleSpeech prints what the patient says.
type consoleSpeech struct {
	w io.Writer
}

func (s consoleSpeech) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintf(s.w, "Patient: %s\n", text)
	return err
}

// feedLines queues each input line as one utterance until r is exhausted
// or ctx ends.
func feedLines(ctx context.Context, r io.Reader, q *station.QueueInput) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := q.Push(ctx, sc.Text()); err != nil {
			return
		}
	}
}

func runCasesList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	repo := casefile.NewDirRepository(cfg.CasesDir, config.NewLogger(cfg.LogLevel))
	cases, err := repo.List(cmd.Context())
	if err != nil {
		return err
	}
	return printCases(cmd.OutOrStdout(), cases)
}

func printCases(w io.Writer, cases []*casefile.Case) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATION\tTYPE\tDIAGNOSIS")
	for _, c := range cases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.StationName, c.StationType, c.Diagnosis)
	}
	return tw.Flush()
}

func runCasesImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel)
	db, err := app.OpenDB(cmd.Context(), cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	cases, err := casefile.NewDirRepository(cfg.CasesDir, logger).List(cmd.Context())
	if err != nil {
		return err
	}
	store := casefile.NewPostgresRepository(db)
	for _, c := range cases {
		if err := store.Save(cmd.Context(), c); err != nil {
			return fmt.Errorf("import %s: %w", c.ID, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d cases\n", len(cases))
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := app.Migrate(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func openArchive(cmd *cobra.Command) (*report.Archive, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := app.OpenDB(cmd.Context(), cfg.DatabaseURL, config.NewLogger(cfg.LogLevel))
	if err != nil {
		return nil, nil, err
	}
	return report.NewArchive(db), func() { db.Close() }, nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}
	archive, closeDB, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	r, err := archive.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.Text())
	return nil
}

func runReportsList(cmd *cobra.Command, args []string) error {
	archive, closeDB, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	reports, err := archive.ListByCase(cmd.Context(), caseFlag, limitFlag)
	if err != nil {
		return err
	}
	return printReports(cmd.OutOrStdout(), reports)
}

func printReports(w io.Writer, reports []*station.FeedbackReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tGENERATED\tQUESTIONS\tLISTENING")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.SessionID, r.GeneratedAt.Format("2006-01-02 15:04"), r.Questions, r.Listening)
	}
	return tw.Flush()
}
