// Command moneta is the ledger CLI: capture transactions, manage
// installment groups, browse categories, and move the whole ledger
// through portable archives.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneta/internal/ai"
	"moneta/internal/amqp"
	"moneta/internal/backend"
	"moneta/internal/cli"
	"moneta/internal/config"
	"moneta/internal/core"
	"moneta/internal/ledger"
	"moneta/internal/rates"
	"moneta/internal/transfer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := cli.Bootstrap()
	store, cleanup := cli.OpenStore(cfg)
	defer closeQuietly(cleanup)

	ctx, stop := cli.SignalContext()
	defer stop()

	registry := ledger.NewRegistry(store)
	if err := registry.InitializeDefaults(ctx); err != nil {
		slog.Error("Failed to seed default categories", "error", err)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(ctx, store, registry, os.Args[2:])
	case "capture":
		err = runCapture(ctx, cfg, store, registry, os.Args[2:])
	case "installment":
		err = runInstallment(ctx, store, registry, os.Args[2:])
	case "categories":
		err = runCategories(ctx, registry, os.Args[2:])
	case "export":
		err = runExport(ctx, cfg, store, os.Args[2:])
	case "import":
		err = runImport(ctx, store, registry, os.Args[2:])
	case "rate":
		err = runRate(ctx, cfg, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: moneta <command> [flags]

commands:
  add          record one transaction from explicit fields
  capture      record one transaction extracted from free text
  installment  create, inspect, or settle split purchases
  categories   list the category taxonomy by usage
  export       write the whole ledger to a zip archive
  import       merge an exported archive into the ledger
  rate         look up a currency conversion rate`)
}

func closeQuietly(cleanup backend.CleanupFunc) {
	if cleanup == nil {
		return
	}
	if err := cleanup(); err != nil {
		slog.Warn("Backend cleanup failed", "error", err)
	}
}

func runAdd(ctx context.Context, store ledger.Store, registry *ledger.Registry, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	kind := fs.String("kind", "expense", "expense or income")
	amount := fs.String("amount", "", "positive amount, required")
	currency := fs.String("currency", ledger.DefaultCurrency, "ISO 4217 currency code")
	main := fs.String("main", ledger.DefaultCategory, "main category")
	sub := fs.String("sub", "", "subcategory")
	counterparty := fs.String("counterparty", "", "merchant or person")
	note := fs.String("note", "", "free-form note")
	date := fs.String("date", "", "occurred at, YYYY-MM-DD or YYYY-MM-DD HH:MM:SS; empty means now")
	fs.Parse(args)

	value, err := core.ParseAmount(*amount)
	if err != nil {
		return fmt.Errorf("parse amount: %w", err)
	}
	occurredAt := time.Now()
	if *date != "" {
		occurredAt, err = parseDate(*date)
		if err != nil {
			return err
		}
	}

	capture := ledger.NewCapture(store, registry, nil, nil)
	tx, err := capture.Create(ctx, core.Transaction{
		Kind:         core.ParseKind(*kind, core.Expense),
		OccurredAt:   occurredAt,
		Amount:       value,
		Currency:     *currency,
		MainCategory: *main,
		SubCategory:  *sub,
		Counterparty: *counterparty,
		Note:         *note,
	})
	if err != nil {
		return err
	}
	fmt.Printf("recorded %s %s %s %s/%s (%s)\n",
		tx.Kind, core.FormatAmount(tx.Amount), tx.Currency, tx.MainCategory, tx.SubCategory, tx.ID)
	return nil
}

func runCapture(ctx context.Context, cfg *config.Config, store ledger.Store, registry *ledger.Registry, args []string) error {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	text := fs.String("text", "", "raw transaction text, required")
	kind := fs.String("kind", "expense", "preferred kind when the text is ambiguous")
	fs.Parse(args)

	if *text == "" {
		return fmt.Errorf("missing -text")
	}

	extractor, err := ai.New(ctx, cfg.GenAIModel, registry)
	if err != nil {
		return fmt.Errorf("initialize extractor: %w", err)
	}

	var events ledger.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Warn("Broker unavailable, continuing without events", "error", err)
		} else {
			defer client.Close()
			events = client
		}
	}

	capture := ledger.NewCapture(store, registry, extractor, events)
	result, err := capture.FromText(ctx, *text, core.ParseKind(*kind, core.Expense))
	if err != nil {
		return err
	}
	if result.Skipped {
		fmt.Println("skipped: looks like a duplicate of an existing transaction")
		return nil
	}
	tx := result.Transaction
	fmt.Printf("captured %s %s %s %s/%s (%s)\n",
		tx.Kind, core.FormatAmount(tx.Amount), tx.Currency, tx.MainCategory, tx.SubCategory, tx.ID)
	return nil
}

func runInstallment(ctx context.Context, store ledger.Store, registry *ledger.Registry, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: moneta installment <create|members|payoff|delete-group> [flags]")
	}
	installments := ledger.NewInstallments(store, registry)

	switch args[0] {
	case "create":
		return runInstallmentCreate(ctx, installments, args[1:])
	case "members":
		return runInstallmentMembers(ctx, store, installments, args[1:])
	case "payoff":
		return runInstallmentPayoff(ctx, installments, args[1:])
	case "delete-group":
		return runInstallmentDeleteGroup(ctx, store, installments, args[1:])
	default:
		return fmt.Errorf("unknown installment subcommand %q", args[0])
	}
}

func runInstallmentCreate(ctx context.Context, installments *ledger.Installments, args []string) error {
	fs := flag.NewFlagSet("installment create", flag.ExitOnError)
	principal := fs.String("principal", "", "total principal, required")
	rate := fs.String("rate", "0", "annual rate percent")
	periods := fs.Int("periods", 0, "number of monthly periods, required")
	first := fs.String("first", "", "first due date, YYYY-MM-DD; empty means today")
	currency := fs.String("currency", ledger.DefaultCurrency, "ISO 4217 currency code")
	main := fs.String("main", ledger.DefaultCategory, "main category")
	sub := fs.String("sub", "", "subcategory")
	counterparty := fs.String("counterparty", "", "merchant or lender")
	note := fs.String("note", "", "free-form note")
	fs.Parse(args)

	firstDue := time.Now()
	if *first != "" {
		var err error
		firstDue, err = parseDate(*first)
		if err != nil {
			return err
		}
	}

	periodsOut, err := installments.CreateGroup(ctx, ledger.GroupRequest{
		Kind:          core.Expense,
		FirstDueDate:  firstDue,
		PrincipalText: *principal,
		RateText:      *rate,
		PeriodCount:   *periods,
		Currency:      *currency,
		MainCategory:  *main,
		SubCategory:   *sub,
		Counterparty:  *counterparty,
		Note:          *note,
	})
	if err != nil {
		return err
	}

	rep := periodsOut[0]
	fmt.Printf("created %d periods, group %s\n", len(periodsOut), rep.ID)
	for _, tx := range periodsOut {
		fmt.Printf("  %2d/%d  %s  %s %s\n",
			tx.Installment.PeriodIndex, tx.Installment.PeriodCount,
			tx.OccurredAt.Format("2006-01-02"), core.FormatAmount(tx.Amount), tx.Currency)
	}
	return nil
}

func runInstallmentMembers(ctx context.Context, store ledger.Store, installments *ledger.Installments, args []string) error {
	fs := flag.NewFlagSet("installment members", flag.ExitOnError)
	id := fs.String("id", "", "any period's transaction id, required")
	fs.Parse(args)

	tx, err := store.Get(ctx, *id)
	if err != nil {
		return err
	}
	members, err := installments.Members(ctx, tx)
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Printf("%2d/%d  %s  %s %s  %s\n",
			m.Installment.PeriodIndex, m.Installment.PeriodCount,
			m.OccurredAt.Format("2006-01-02"), core.FormatAmount(m.Amount), m.Currency, m.ID)
	}
	return nil
}

func runInstallmentPayoff(ctx context.Context, installments *ledger.Installments, args []string) error {
	fs := flag.NewFlagSet("installment payoff", flag.ExitOnError)
	id := fs.String("id", "", "the period to absorb the remaining amounts, required")
	fs.Parse(args)

	tx, err := installments.EarlyPayoff(ctx, *id)
	if err != nil {
		return err
	}
	fmt.Printf("settled early: period %d now carries %s %s\n",
		tx.Installment.PeriodIndex, core.FormatAmount(tx.Amount), tx.Currency)
	return nil
}

func runInstallmentDeleteGroup(ctx context.Context, store ledger.Store, installments *ledger.Installments, args []string) error {
	fs := flag.NewFlagSet("installment delete-group", flag.ExitOnError)
	id := fs.String("id", "", "any period's transaction id, required")
	fs.Parse(args)

	tx, err := store.Get(ctx, *id)
	if err != nil {
		return err
	}
	if err := installments.DeleteGroup(ctx, tx); err != nil {
		return err
	}
	fmt.Println("group deleted")
	return nil
}

func runCategories(ctx context.Context, registry *ledger.Registry, args []string) error {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	kindFlag := fs.String("kind", "expense", "expense or income")
	fs.Parse(args)

	kind := core.ParseKind(*kindFlag, core.Expense)
	mains, err := registry.MainCategories(ctx, kind)
	if err != nil {
		return err
	}
	for _, main := range mains {
		subs, err := registry.SubCategories(ctx, main, kind)
		if err != nil {
			return err
		}
		fmt.Printf("%s:", main)
		for _, sub := range subs {
			fmt.Printf(" %s", sub)
		}
		fmt.Println()
	}
	return nil
}

func runExport(ctx context.Context, cfg *config.Config, store ledger.Store, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "archive path; empty picks a timestamped name in the export dir")
	fs.Parse(args)

	zipPath := *out
	if zipPath == "" {
		if err := os.MkdirAll(cfg.ExportDir, 0755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
		zipPath = filepath.Join(cfg.ExportDir, "ledger-"+time.Now().Format("20060102-150405")+".zip")
	}

	rows, err := transfer.NewExporter(store).Export(ctx, zipPath, printProgress)
	if err != nil {
		return err
	}
	fmt.Printf("\nexported %d transactions to %s\n", rows, zipPath)
	return nil
}

func runImport(ctx context.Context, store ledger.Store, registry *ledger.Registry, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	in := fs.String("in", "", "archive path, required")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("missing -in")
	}
	counts, err := transfer.NewImporter(store, registry).Import(ctx, *in, printProgress)
	if err != nil {
		return err
	}
	fmt.Printf("\nimported %d, skipped %d duplicates, failed %d of %d rows\n",
		counts.Imported, counts.Skipped, counts.Failed, counts.Total)
	return nil
}

func runRate(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("rate", flag.ExitOnError)
	from := fs.String("from", ledger.DefaultCurrency, "source currency")
	to := fs.String("to", "USD", "target currency")
	fs.Parse(args)

	opts := []rates.Option{rates.WithTTL(cfg.RatesTTL)}
	if cfg.RatesBaseURL != "" {
		opts = append(opts, rates.WithBaseURL(cfg.RatesBaseURL))
	}
	rate, err := rates.New(opts...).Rate(ctx, *from, *to)
	if err != nil {
		return err
	}
	fmt.Printf("1 %s = %.4f %s\n", *from, rate, *to)
	return nil
}

func printProgress(p transfer.Progress) {
	fmt.Printf("\r%-24s %3.0f%%", p.Phase, p.Fraction*100)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: want YYYY-MM-DD or YYYY-MM-DD HH:MM:SS", s)
}
